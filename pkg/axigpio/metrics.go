package axigpio

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalInterruptEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "uiotest",
		Subsystem: "axi_gpio",
		Name:      "global_interrupt_enabled",
		Help:      "Whether the global interrupt enable bit is set",
	})
	statusBitsCleared = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uiotest",
		Subsystem: "axi_gpio",
		Name:      "status_bits_cleared_count",
		Help:      "Interrupt status bits acknowledged, by bit",
	}, []string{"bit"})
	dataValue = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "uiotest",
		Subsystem: "axi_gpio",
		Name:      "data",
		Help:      "Last sampled GPIO_DATA register value",
	})
)

func observeStatus(status uint32) {
	for bit := 0; bit < 32; bit++ {
		if status&(1<<bit) != 0 {
			statusBitsCleared.WithLabelValues(strconv.Itoa(bit)).Inc()
		}
	}
}

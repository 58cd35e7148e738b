package uio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsRoot is where the kernel publishes UIO device attributes.
var SysfsRoot = "/sys/class/uio"

// Info describes a UIO device as published in sysfs.
type Info struct {
	Device  string
	Name    string
	Version string
	Maps    []MapInfo
}

// MapInfo describes one memory region of a UIO device.
type MapInfo struct {
	Name string
	Addr uint64
	Size uint64
}

// ResolvePath expands the shorthands "3" and "uio3" to "/dev/uio3". Anything
// else is returned unchanged.
func ResolvePath(device string) string {
	if _, err := strconv.ParseUint(device, 10, 32); err == nil {
		return "/dev/uio" + device
	}
	if strings.HasPrefix(device, "uio") && !strings.ContainsRune(device, os.PathSeparator) {
		if _, err := strconv.ParseUint(device[len("uio"):], 10, 32); err == nil {
			return "/dev/" + device
		}
	}
	return device
}

// Lookup reads the sysfs attributes of the UIO device behind path.
func Lookup(path string) (*Info, error) {
	dev := filepath.Base(path)
	dir := filepath.Join(SysfsRoot, dev)

	name, err := readAttr(dir, "name")
	if err != nil {
		return nil, err
	}
	version, err := readAttr(dir, "version")
	if err != nil {
		return nil, err
	}

	info := &Info{
		Device:  dev,
		Name:    name,
		Version: version,
	}

	for i := 0; ; i++ {
		mapDir := filepath.Join(dir, "maps", fmt.Sprintf("map%d", i))
		if _, err := os.Stat(mapDir); err != nil {
			break
		}
		m, err := readMap(mapDir)
		if err != nil {
			return nil, err
		}
		info.Maps = append(info.Maps, m)
	}

	return info, nil
}

func readMap(dir string) (MapInfo, error) {
	var m MapInfo
	var err error

	// name is optional, older kernels don't have it
	m.Name, _ = readAttr(dir, "name")

	if m.Addr, err = readHexAttr(dir, "addr"); err != nil {
		return m, err
	}
	if m.Size, err = readHexAttr(dir, "size"); err != nil {
		return m, err
	}
	return m, nil
}

func readAttr(dir, attr string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func readHexAttr(dir, attr string) (uint64, error) {
	raw, err := readAttr(dir, attr)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s in %s: %w", attr, dir, err)
	}
	return val, nil
}

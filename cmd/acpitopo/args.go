package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Region is a file whose contents are placed at a physical address.
type Region struct {
	Base uint64
	Path string
}

// regionList implements flag.Value for repeated -region flags.
type regionList []Region

func (l *regionList) String() string {
	parts := make([]string, len(*l))
	for i, r := range *l {
		parts[i] = fmt.Sprintf("0x%x:%s", r.Base, r.Path)
	}
	return strings.Join(parts, ",")
}

func (l *regionList) Set(s string) error {
	r, err := ParseRegion(s)
	if err != nil {
		return err
	}
	*l = append(*l, r)
	return nil
}

// Config holds the command line options.
type Config struct {
	MemPath    string
	Regions    []Region
	Script     string
	CmdLine    string
	Dump       string
	Offset     int64
	Length     int
	ProfileDir string
}

// ParseRegion parses a region argument of the form base:path. The base
// address can be given in any base accepted by strconv.ParseUint.
func ParseRegion(s string) (Region, error) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return Region{}, fmt.Errorf("%q: expected base:path: %w", s, strconv.ErrSyntax)
	}

	base, err := strconv.ParseUint(s[:idx], 0, 64)
	if err != nil {
		return Region{}, err
	}

	return Region{Base: base, Path: s[idx+1:]}, nil
}

// ParseSize parses a size string as number[gGmMkK]. The multiplier is
// optional, and if not set, the unit passed in is used. The number can be
// any base and size.
func ParseSize(s, unit string) (int, error) {
	sz := strings.TrimRight(s, "gGmMkK")
	if len(sz) == 0 {
		return -1, fmt.Errorf("%q:can't parse as num[gGmMkK]:%w", s, strconv.ErrSyntax)
	}

	amt, err := strconv.ParseUint(sz, 0, 0)
	if err != nil {
		return -1, err
	}

	if len(s) > len(sz) {
		unit = s[len(sz):]
	}

	switch unit {
	case "G", "g":
		return int(amt) << 30, nil
	case "M", "m":
		return int(amt) << 20, nil
	case "K", "k":
		return int(amt) << 10, nil
	case "":
		return int(amt), nil
	}

	return -1, fmt.Errorf("can not parse %q as num[gGmMkK]:%w", s, strconv.ErrSyntax)
}

// ParseArgs parses the command line in args (including the program name).
func ParseArgs(args []string, stderr io.Writer) (*Config, error) {
	var (
		cfg     Config
		regions regionList
		fs      = flag.NewFlagSet(args[0], flag.ContinueOnError)
	)

	fs.SetOutput(stderr)
	fs.StringVar(&cfg.MemPath, "mem", "/dev/mem", "physical memory device; ignored if -region is given")
	fs.Var(&regions, "region", "base:path of a memory image to place at a physical address (repeatable)")
	fs.StringVar(&cfg.Script, "script", "", "lua script describing the ACPI namespace")
	fs.StringVar(&cfg.CmdLine, "cmdline", "acpi", "boot command line toggles (acpi, acpi=0, nomp)")
	fs.StringVar(&cfg.Dump, "dump", "", "write the raw tables to this file (- for stdout)")
	fs.Int64Var(&cfg.Offset, "offset", 0, "offset into the raw table stream")
	fs.StringVar(&cfg.ProfileDir, "profile", "", "write a CPU profile to this directory")
	length := fs.String("length", "0", "bytes of the raw table stream to dump: number[kKmM]; 0 dumps everything")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	if fs.NArg() != 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	var err error
	if cfg.Length, err = ParseSize(*length, ""); err != nil {
		return nil, err
	}

	if cfg.Offset < 0 {
		return nil, fmt.Errorf("negative offset %d", cfg.Offset)
	}

	cfg.Regions = regions
	return &cfg, nil
}

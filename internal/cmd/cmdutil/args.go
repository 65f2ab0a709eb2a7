package cmdutil

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// ParseID reads the single positional entity id.
func ParseID(fs *flag.FlagSet) (int64, error) {
	if fs.NArg() != 1 {
		return 0, fmt.Errorf("%s: expected exactly one id", fs.Name())
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s: invalid id %q", fs.Name(), fs.Arg(0))
	}
	return id, nil
}

// Visited returns the names of flags set on the command line.
func Visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// Pairs collects repeated key=value flags.
type Pairs map[string]string

func (p Pairs) String() string {
	var parts []string
	for k, v := range p {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (p Pairs) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	p[k] = strings.TrimSpace(v)
	return nil
}

// List is a comma separated flag value.
type List []string

func (l *List) String() string { return strings.Join(*l, ",") }

func (l *List) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// Sub splits args into a verb and the rest, checking it against verbs.
func Sub(cmd string, args []string, verbs ...string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s: missing subcommand (%s)", cmd, strings.Join(verbs, "|"))
	}
	for _, v := range verbs {
		if args[0] == v {
			return v, args[1:], nil
		}
	}
	return "", nil, fmt.Errorf("%s: unknown subcommand %q (%s)", cmd, args[0], strings.Join(verbs, "|"))
}

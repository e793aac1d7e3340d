package deb

import (
	"fmt"
	"path"
	"strings"
)

// Alternative registers a generic name with the Debian alternatives system,
// pointing Link (the generic name, e.g. /usr/bin/pip) at Path (the installed
// executable, e.g. /usr/bin/pip-accel).
type Alternative struct {
	Link string
	Path string
}

// AlternativesPriority is the priority passed to update-alternatives
// --install. All converted packages use the same priority.
const AlternativesPriority = 0

// AlternativesPostinst renders a postinst maintainer script that registers
// the given alternatives on installation.
func AlternativesPostinst(alts []Alternative) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\nset -e\n")
	for _, a := range alts {
		fmt.Fprintf(&b, "update-alternatives --install %s %s %s %d\n",
			a.Link, path.Base(a.Link), a.Path, AlternativesPriority)
	}
	return b.String()
}

// AlternativesPrerm renders a prerm maintainer script that removes the given
// alternatives before the package is taken off the system.
func AlternativesPrerm(alts []Alternative) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\nset -e\n")
	for _, a := range alts {
		fmt.Fprintf(&b, "update-alternatives --remove %s %s\n",
			path.Base(a.Link), a.Path)
	}
	return b.String()
}

package api

import (
	"strings"
)

// ShortenType removes the namespaces from a fully qualified type name,
// including the names of generic arguments. Names it does not understand
// are returned unchanged.
func ShortenType(typ string) string {
	out, ok := shortenTypeEx(typ)
	if !ok {
		return typ
	}
	return out
}

func shortenTypeEx(typ string) (string, bool) {
	switch {
	case typ == "":
		return "", false
	case strings.HasSuffix(typ, "*"):
		sub, ok := shortenTypeEx(typ[:len(typ)-1])
		return sub + "*", ok
	case strings.HasSuffix(typ, "[]"):
		sub, ok := shortenTypeEx(typ[:len(typ)-2])
		return sub + "[]", ok
	}
	lbrk := strings.Index(typ, "[")
	if lbrk < 0 {
		if strings.ContainsAny(typ, "], ") {
			return "", false
		}
		return shortName(typ), true
	}
	if typ[len(typ)-1] != ']' {
		return "", false
	}
	args, ok := splitArgs(typ[lbrk+1 : len(typ)-1])
	if !ok {
		return "", false
	}
	for i := range args {
		args[i], ok = shortenTypeEx(strings.TrimSpace(args[i]))
		if !ok {
			return "", false
		}
	}
	return shortName(typ[:lbrk]) + "[" + strings.Join(args, ", ") + "]", true
}

func shortName(typ string) string {
	if i := strings.LastIndexByte(typ, '.'); i >= 0 {
		return typ[i+1:]
	}
	return typ
}

// splitArgs splits a comma separated list of generic arguments, ignoring
// the commas of nested argument lists.
func splitArgs(s string) ([]string, bool) {
	var r []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, false
			}
		case ',':
			if depth == 0 {
				r = append(r, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, false
	}
	return append(r, s[start:]), true
}

package control

import "strings"

// ParseAddress converts one external control message, in the
// "/mod/<module_id>/<param_name> <float>" or "/gate/<module_id> <bool|int>"
// address families, into a Command Packet. ok is false for any address
// this core doesn't recognize; the caller (control-input thread) drops
// the message without surfacing an error.
//
// The wire protocol that frames these addresses onto a transport is
// someone else's concern; this only defines the two address families
// the core consumes.
func ParseAddress(addr string, args []float64) (Packet, bool) {
	switch {
	case strings.HasPrefix(addr, "/mod/"):
		rest := addr[len("/mod/"):]
		i := strings.LastIndexByte(rest, '/')
		if i <= 0 || i == len(rest)-1 {
			return Packet{}, false
		}
		if len(args) < 1 {
			return Packet{}, false
		}
		moduleID, param := rest[:i], rest[i+1:]
		if !validIdent(moduleID) || !validIdent(param) {
			return Packet{}, false
		}
		return SetParameter(moduleID, param, args[0], false), true

	case strings.HasPrefix(addr, "/gate/"):
		moduleID := addr[len("/gate/"):]
		if moduleID == "" || !validIdent(moduleID) {
			return Packet{}, false
		}
		if len(args) < 1 {
			return Packet{}, false
		}
		return Gate(moduleID, args[0] != 0), true
	}
	return Packet{}, false
}

// validIdent enforces the charset [a-z0-9_] and the 16-byte field width
// of a Command Packet identifier.
func validIdent(s string) bool {
	if s == "" || len(s) > 16 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

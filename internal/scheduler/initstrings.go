package scheduler

import "strconv"

// standardHeaderFor returns the ATSH broadcast header for a given CAN
// protocol number, per spec §4.5: protocols 6/8 (11-bit CAN) address
// 7DF, protocols 7/9 (29-bit CAN) address 18DB33F1. Other protocols
// have no broadcast functional header, so ATSH is omitted.
func standardHeaderFor(protocolNum int) (string, bool) {
	switch protocolNum {
	case 6, 8:
		return "7DF", true
	case 7, 9:
		return "18DB33F1", true
	default:
		return "", false
	}
}

// buildStandardInit assembles the standard-class init sequence:
// ATTP<p>\rATSH<h>\rATCRA<rx>\r, omitting ATSH when the protocol has no
// broadcast header and ATCRA when no receive filter applies.
func buildStandardInit(protocolDigit string, protocolNum int, rxHeader string) string {
	s := "ATTP" + protocolDigit + "\r"
	if h, ok := standardHeaderFor(protocolNum); ok {
		s += "ATSH" + h + "\r"
	}
	if rxHeader != "" {
		s += "ATCRA" + rxHeader + "\r"
	}
	return s
}

func protocolDigitFor(configured string, known bool, current int) string {
	if configured != "auto" {
		return configured
	}
	if known {
		return strconv.Itoa(current)
	}
	return "0"
}

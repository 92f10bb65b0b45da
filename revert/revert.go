// Package revert turns the failures produced by wallets, JSON-RPC nodes and the Voting contract
// into a single human readable reason.
package revert

import (
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// RejectedByUser is the reason reported when the wallet holder declined the request.
	RejectedByUser = "Transaction rejected by user"
	// Unknown is the reason reported when nothing usable could be extracted.
	Unknown = "Unknown error occurred"

	// UserRejectedCode is the EIP-1193 code for a request the user declined.
	UserRejectedCode = 4001

	// errorStringHeaderLen is the length of "0x" followed by the Error(string) selector, the
	// string offset word and the string length word.
	errorStringHeaderLen = 2 + 8 + 64 + 64
)

// reasonPatterns are tried in order against the top-level message.
var reasonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)reverted with reason string '([^']+)'`),
	regexp.MustCompile(`(?i)execution reverted: "?(.*?)"?(?:\n|$)`),
	regexp.MustCompile(`(?i)execution reverted: (.*?)$`),
	regexp.MustCompile(`(?i)reason string "([^"]+)"`),
	regexp.MustCompile(`(?i)revert (.*?)$`),
}

var nestedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)reverted with reason string '([^']+)'`),
	regexp.MustCompile(`(?i)reverted: "?([^"]+)"?`),
}

// Decode extracts the most specific reason from err. It never fails: when nothing better is
// found the raw message is returned, and [Unknown] when there is none.
func Decode(err error) string {
	if err == nil {
		return Unknown
	}

	if isUserRejection(err) {
		return RejectedByUser
	}

	if msg, ok := nestedMessage(err); ok {
		for _, re := range nestedPatterns {
			if m := re.FindStringSubmatch(msg); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
				return strings.TrimSpace(m[1])
			}
		}

		return msg
	}

	if payload, ok := hexPayload(err); ok {
		if reason, ok := decodeErrorString(payload); ok {
			return reason
		}
	}

	msg := strings.TrimSpace(err.Error())
	for _, re := range reasonPatterns {
		if m := re.FindStringSubmatch(msg); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1])
		}
	}

	if msg != "" {
		return msg
	}

	return Unknown
}

// IsUserRejection reports whether err means the wallet holder declined the request.
func IsUserRejection(err error) bool {
	return err != nil && isUserRejection(err)
}

func isUserRejection(err error) bool {
	var coded rpc.Error
	if errors.As(err, &coded) && coded.ErrorCode() == UserRejectedCode {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "user denied")
}

// errorData returns the data attached to the first JSON-RPC error in the chain.
func errorData(err error) (any, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) || de.ErrorData() == nil {
		return nil, false
	}

	return de.ErrorData(), true
}

// nestedMessage returns the message of a structured error object carried as error data, the
// shape development nodes use.
func nestedMessage(err error) (string, bool) {
	data, ok := errorData(err)
	if !ok {
		return "", false
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := obj["message"].(string)
	if !ok || strings.TrimSpace(msg) == "" {
		return "", false
	}

	return strings.TrimSpace(msg), true
}

// hexPayload returns the 0x prefixed revert payload carried as error data, if any.
func hexPayload(err error) (string, bool) {
	data, ok := errorData(err)
	if !ok {
		return "", false
	}

	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	case hexutil.Bytes:
		payload = hexutil.Encode(v)
	case []byte:
		payload = hexutil.Encode(v)
	case map[string]any:
		s, ok := v["data"].(string)
		if !ok {
			return "", false
		}
		payload = s
	default:
		return "", false
	}

	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "0x") || len(payload) <= errorStringHeaderLen {
		return "", false
	}

	return payload, true
}

// decodeErrorString decodes a standard Error(string) payload. A payload that does not decode
// cleanly still yields its trailing region read as text.
func decodeErrorString(payload string) (string, bool) {
	if raw, err := hexutil.Decode(payload); err == nil {
		if reason, err := abi.UnpackRevert(raw); err == nil && strings.TrimSpace(reason) != "" {
			return strings.TrimSpace(reason), true
		}
	}

	tail := payload[errorStringHeaderLen:]
	if len(tail)%2 == 1 {
		tail = tail[:len(tail)-1]
	}
	text, err := hex.DecodeString(tail)
	if err != nil {
		return "", false
	}
	reason := strings.TrimSpace(strings.ReplaceAll(string(text), "\x00", ""))
	if reason == "" {
		return "", false
	}

	return reason, true
}

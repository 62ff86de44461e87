// Package validation provides input validation helpers for the trust directory API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

var (
	// agentIDRegex validates agent identifiers, e.g. "agent_sarah_4f8a9b2c"
	agentIDRegex = regexp.MustCompile(`^agent_[a-z0-9_]{1,64}$`)
	// capabilityRegex validates capability tags, e.g. "sell_electronics"
	capabilityRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	// hexRegex validates hex strings (public keys, signatures)
	hexRegex = regexp.MustCompile(`^[a-fA-F0-9]+$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidAgentID checks if a string is a well-formed agent identifier
func IsValidAgentID(id string) bool {
	return agentIDRegex.MatchString(id)
}

// IsValidCapability checks if a string is a well-formed capability tag
func IsValidCapability(tag string) bool {
	return capabilityRegex.MatchString(tag)
}

// IsValidHex checks if a string is valid hex
func IsValidHex(s string) bool {
	return hexRegex.MatchString(s)
}

// IsValidTrustScore checks that a trust score is in the directory's 0-5 range
func IsValidTrustScore(score float64) bool {
	return score >= 0 && score <= 5
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Field + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

package middleware

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
)

// Input validation and sanitization utilities

var (
	tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	refPattern    = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,200}$`)
	scpPattern    = regexp.MustCompile(`^[A-Za-z0-9._-]+@([A-Za-z0-9.-]+):(.+)$`)
)

// ValidateRepoURL checks a git URL submitted over the API and returns the
// registrable domain of its host. Only https and ssh remotes on public hosts
// are accepted.
func ValidateRepoURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("repository URL cannot be empty")
	}
	if strings.HasPrefix(raw, "-") || strings.ContainsAny(raw, " \t\r\n`$;|&") {
		return "", fmt.Errorf("invalid characters in repository URL")
	}

	var host string
	if m := scpPattern.FindStringSubmatch(raw); m != nil && !strings.Contains(raw, "://") {
		host = m[1]
	} else {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid URL format: %w", err)
		}
		if u.Scheme != "https" && u.Scheme != "ssh" {
			return "", fmt.Errorf("invalid URL scheme: %q (allowed: https, ssh)", u.Scheme)
		}
		if _, hasPassword := u.User.Password(); hasPassword {
			return "", fmt.Errorf("credentials must not be embedded in the repository URL")
		}
		if strings.Trim(u.Path, "/") == "" {
			return "", fmt.Errorf("repository URL has no path")
		}
		host = u.Hostname()
	}

	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return "", fmt.Errorf("repository URL has no host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal") {
		return "", fmt.Errorf("localhost/internal hosts are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return "", fmt.Errorf("private IP ranges are not allowed")
		}
		return host, nil
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("host %q is not a public domain: %w", host, err)
	}
	return registrable, nil
}

// ValidateRef validates an optional git branch or tag name.
func ValidateRef(ref string) error {
	if ref == "" {
		return nil
	}
	if !refPattern.MatchString(ref) || strings.HasPrefix(ref, "-") || strings.Contains(ref, "..") {
		return fmt.Errorf("invalid git ref %q", ref)
	}
	return nil
}

// ValidateKind parses an optional scan kind filter.
func ValidateKind(kind string) (domain.Kind, error) {
	if kind == "" {
		return "", nil
	}
	k := domain.Kind(strings.ToLower(kind))
	if !k.Valid() {
		return "", fmt.Errorf("invalid kind: %s (allowed: soc2, ai_act, bias)", kind)
	}
	return k, nil
}

// ValidateStatus parses an optional scan status filter.
func ValidateStatus(status string) (domain.Status, error) {
	switch s := domain.Status(strings.ToLower(status)); s {
	case "", domain.StatusQueued, domain.StatusRunning, domain.StatusSuccess, domain.StatusFailed:
		return s, nil
	}
	return "", fmt.Errorf("invalid status: %s", status)
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateScanID validates scan ID format: <uuid>-<kind>
func ValidateScanID(scanID string) error {
	if scanID == "" {
		return fmt.Errorf("scan ID cannot be empty")
	}
	if len(scanID) < 38 || scanID[36] != '-' {
		return fmt.Errorf("invalid scan ID format")
	}
	if _, err := uuid.Parse(scanID[:36]); err != nil {
		return fmt.Errorf("invalid scan ID format")
	}
	if !domain.Kind(scanID[37:]).Valid() {
		return fmt.Errorf("invalid scan ID kind suffix")
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}

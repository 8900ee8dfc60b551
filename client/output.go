package client

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// Formatter formats results for output.
type Formatter interface {
	FormatResult(w io.Writer, result *Result) error
	FormatAuthorized(w io.Writer, username string, authorized bool) error
	FormatFetch(w io.Writer, result *FetchResult) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatResult prints the server's message.
func (f *HumanFormatter) FormatResult(w io.Writer, result *Result) error {
	if !f.Quiet {
		_, _ = fmt.Fprintln(w, result.Message)
	}
	return nil
}

// FormatAuthorized prints whether the user holds a privilege grant.
func (f *HumanFormatter) FormatAuthorized(w io.Writer, username string, authorized bool) error {
	if f.Quiet {
		return nil
	}
	if authorized {
		_, _ = fmt.Fprintf(w, "%s is authorized\n", username)
	} else {
		_, _ = fmt.Fprintf(w, "%s is not authorized\n", username)
	}
	return nil
}

// FormatFetch formats a fetch result as human-readable text.
func (f *HumanFormatter) FormatFetch(w io.Writer, result *FetchResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Fetched: %s (%s)\n", result.URL, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Fetched: %s -> %s (%s)\n", result.URL, result.LocalPath, formatSize(result.Size))
	}
	if result.ContentType != "" {
		_, _ = fmt.Fprintf(w, "  Content-Type: %s\n", result.ContentType)
	}
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4 // "NAME"
	maxAddrLen := 7 // "ADDRESS"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxAddrLen = max(maxAddrLen, len(profiles[i].Address))
	}
	maxNameLen = min(maxNameLen, 20)
	maxAddrLen = min(maxAddrLen, 50)

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxAddrLen, "ADDRESS", "SESSION")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxAddrLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %s\n",
			marker,
			maxNameLen, ellipsize(p.Name, maxNameLen),
			maxAddrLen, ellipsize(p.Address, maxAddrLen),
			maskSecret(p.Cookies[sessionCookie], showSecrets),
		)
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:    %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Address: %s\n", profile.Address)
	if len(profile.Cookies) == 0 {
		_, _ = fmt.Fprintln(w, "Cookies: (none)")
		return nil
	}
	_, _ = fmt.Fprintln(w, "Cookies:")
	for _, name := range slices.Sorted(maps.Keys(profile.Cookies)) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", name, maskSecret(profile.Cookies[name], showSecrets))
	}
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatResult formats a result as JSON.
func (f *JSONFormatter) FormatResult(w io.Writer, result *Result) error {
	return writeJSON(w, result)
}

// FormatAuthorized formats the privilege state as JSON.
func (f *JSONFormatter) FormatAuthorized(w io.Writer, username string, authorized bool) error {
	output := struct {
		Username   string `json:"username"`
		Authorized bool   `json:"authorized"`
	}{
		Username:   username,
		Authorized: authorized,
	}
	return writeJSON(w, output)
}

// FormatFetch formats a fetch result as JSON.
func (f *JSONFormatter) FormatFetch(w io.Writer, result *FetchResult) error {
	return writeJSON(w, result)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

type jsonProfile struct {
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Cookies map[string]string `json:"cookies,omitempty"`
	Default bool              `json:"default"`
}

func toJSONProfile(p *Profile, isDefault, showSecrets bool) jsonProfile {
	jp := jsonProfile{
		Name:    p.Name,
		Address: p.Address,
		Default: isDefault,
	}
	if len(p.Cookies) > 0 {
		jp.Cookies = make(map[string]string, len(p.Cookies))
		for name, value := range p.Cookies {
			jp.Cookies[name] = maskSecret(value, showSecrets)
		}
	}
	return jp
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		p := &profiles[i]
		output.Profiles[i] = toJSONProfile(p, p.Name == defaultName, showSecrets)
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	return writeJSON(w, toJSONProfile(&profile, isDefault, showSecrets))
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ellipsize(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// maskSecret masks a secret string, showing only first 4 and last 4 characters.
// If showSecrets is true, returns the original value.
// If the secret is too short, returns all asterisks.
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

package ops

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/solvane/phonefleet-console/pkg/models"
)

// ExportFormat selects how exported credentials are rendered. Formatting is
// pure over already-fetched data: the same credentials and format always
// produce byte-identical output.
type ExportFormat string

const (
	FormatHostPort         ExportFormat = "hostport"
	FormatHostPortUserPass ExportFormat = "hostport-userpass"
	FormatJSON             ExportFormat = "json"
	FormatCSV              ExportFormat = "csv"
	FormatCurl             ExportFormat = "curl"
)

// FormatExport renders the credentials in the chosen format, preserving
// input order.
func FormatExport(creds []models.Credential, format ExportFormat) (string, error) {
	switch format {
	case FormatHostPort:
		var b strings.Builder
		for _, cr := range creds {
			fmt.Fprintf(&b, "%s:%d\n", cr.Host, cr.Port)
		}
		return b.String(), nil

	case FormatHostPortUserPass:
		var b strings.Builder
		for _, cr := range creds {
			fmt.Fprintf(&b, "%s:%d:%s:%s\n", cr.Host, cr.Port, cr.Username, cr.Password)
		}
		return b.String(), nil

	case FormatJSON:
		buf, err := json.MarshalIndent(creds, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding export: %w", err)
		}
		return string(buf) + "\n", nil

	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		w.Write([]string{"phone_id", "host", "port", "proxy_type", "username", "password"})
		for _, cr := range creds {
			w.Write([]string{cr.PhoneID, cr.Host, strconv.Itoa(cr.Port), string(cr.ProxyType), cr.Username, cr.Password})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", fmt.Errorf("encoding export: %w", err)
		}
		return buf.String(), nil

	case FormatCurl:
		var b strings.Builder
		for _, cr := range creds {
			b.WriteString(curlLine(cr))
			b.WriteByte('\n')
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("ops: unknown export format %q", format)
}

func curlLine(cr models.Credential) string {
	scheme := "socks5"
	if cr.ProxyType == models.ProxyTypeHTTP {
		scheme = "http"
	}
	if cr.Username != "" {
		return fmt.Sprintf("curl -x %s://%s:%s@%s:%d https://api.ipify.org", scheme, cr.Username, cr.Password, cr.Host, cr.Port)
	}
	return fmt.Sprintf("curl -x %s://%s:%d https://api.ipify.org", scheme, cr.Host, cr.Port)
}

// Package prompt renders the agent's system prompt.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

//go:embed system_prompt.tmpl
var defaultTemplate string

// Data is the template context for the system prompt.
type Data struct {
	// WalletAddress is the connected wallet address of the user.
	WalletAddress string

	// Chains lists the chains the simulator serves.
	Chains []string

	// Now is the render time, available as {{ .Now }}.
	Now time.Time
}

// Render produces the system prompt from the template at path, or
// from the embedded default when path is empty.
func Render(path string, data Data) (string, error) {
	templateStr := defaultTemplate
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading system prompt template: %w", err)
		}
		templateStr = string(content)
	}
	if data.Now.IsZero() {
		data.Now = time.Now()
	}

	tmpl, err := template.New("system").Funcs(sprig.TxtFuncMap()).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("parsing system prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing system prompt template: %w", err)
	}
	return buf.String(), nil
}

package prompts

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

//go:embed templates/vault_chat_system_prompt.tmpl
var vaultChatSystemPromptTemplate string

var vaultChatSystemPromptTmpl = template.Must(template.New("vault_chat_system_prompt").Parse(vaultChatSystemPromptTemplate))

type VaultChatSystemPrompt struct {
	BotUsername string
	GroupChat   bool
}

func BuildVaultChatSystemPrompt(data VaultChatSystemPrompt) (string, error) {
	var buf bytes.Buffer
	if err := vaultChatSystemPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

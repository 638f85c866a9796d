package chat

import (
	"fmt"
	"strings"
)

// MaxAttachmentChars caps the file text embedded into a message.
const MaxAttachmentChars = 100_000

const attachmentTruncatedNotice = "\n\n[Содержимое обрезано из-за размера файла]"

// NewUserMessageWithFile builds a user message whose raw content embeds
// the attached file's text while the display content stays the typed
// message. File text past MaxAttachmentChars is cut and marked.
func NewUserMessageWithFile(text, fileName, fileContent string) *Message {
	if runes := []rune(fileContent); len(runes) > MaxAttachmentChars {
		fileContent = string(runes[:MaxAttachmentChars]) + attachmentTruncatedNotice
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Файл: %s]\n---\n%s", fileName, fileContent)
	if text != "" {
		b.WriteString("\n---\n")
		b.WriteString(text)
	}

	m := NewMessage(RoleUser, b.String())
	m.DisplayContent = text
	m.AttachedFile = &FileAttachment{
		Name:      fileName,
		CharCount: len([]rune(fileContent)),
	}
	return m
}

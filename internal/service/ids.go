package service

import (
	"strings"

	"github.com/google/uuid"
)

const completionIDPrefix = "chatcmpl-"

func newCompletionID() string {
	return completionIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

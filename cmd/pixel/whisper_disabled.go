//go:build !whisper

package main

import (
	"errors"

	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/koscakluka/pixel-core/core/speechtotext"
)

func newWhisperRecognizer(string, ...speechtotext.RecognizerOption) (assistant.Recognizer, func() error, error) {
	return nil, nil, errors.New("local whisper recognition needs a build with -tags whisper")
}

//go:build whisper

package main

import (
	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/koscakluka/pixel-core/core/speechtotext"
	"github.com/koscakluka/pixel-core/core/speechtotext/whisper"
)

func newWhisperRecognizer(modelPath string, opts ...speechtotext.RecognizerOption) (assistant.Recognizer, func() error, error) {
	recognizer, err := whisper.NewRecognizer(modelPath, opts...)
	if err != nil {
		return nil, nil, err
	}
	return recognizer, recognizer.Close, nil
}

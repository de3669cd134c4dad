package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/logger"
)

// ErrUnsupported means speech input is not available on this device.
var ErrUnsupported = errors.New("speech recognition unsupported")

const recognizeTimeout = 30 * time.Second

// Recognizer turns a short recording into a single final transcript.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// Unsupported is the recognizer used when no backend is configured.
type Unsupported struct{}

func (Unsupported) Recognize(ctx context.Context, audio []byte) (string, error) {
	return "", ErrUnsupported
}

// CloudRecognizer uses Google Cloud Speech-to-Text.
type CloudRecognizer struct {
	client   *speech.Client
	language string
	log      *logger.Logger
}

// NewCloudRecognizer connects with the given service account file. An
// empty path returns ErrUnsupported.
func NewCloudRecognizer(ctx context.Context, credentialsFile string, log *logger.Logger) (*CloudRecognizer, error) {
	if strings.TrimSpace(credentialsFile) == "" {
		return nil, ErrUnsupported
	}
	if log == nil {
		log = logger.NewNop()
	}
	client, err := speech.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &CloudRecognizer{
		client:   client,
		language: DefaultVoice.Language,
		log:      log.With("service", "speech"),
	}, nil
}

// Recognize returns the best transcript, or "" when nothing was heard.
func (r *CloudRecognizer) Recognize(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	resp, err := r.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig(r.language, audio),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	})
	if err != nil {
		r.log.Warn("recognize failed", "error", err)
		return "", toAIError(err)
	}
	return firstTranscript(resp), nil
}

func (r *CloudRecognizer) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func recognitionConfig(language string, audio []byte) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:    language,
		MaxAlternatives: 1,
		Encoding:        sniffEncoding(audio),
	}
	if cfg.Encoding == speechpb.RecognitionConfig_OGG_OPUS || cfg.Encoding == speechpb.RecognitionConfig_WEBM_OPUS {
		cfg.SampleRateHertz = 48000
	}
	return cfg
}

// sniffEncoding looks at the container magic bytes. WAV and FLAC carry
// their sample rate in the header.
func sniffEncoding(audio []byte) speechpb.RecognitionConfig_AudioEncoding {
	switch {
	case bytes.HasPrefix(audio, []byte("RIFF")):
		return speechpb.RecognitionConfig_LINEAR16
	case bytes.HasPrefix(audio, []byte("fLaC")):
		return speechpb.RecognitionConfig_FLAC
	case bytes.HasPrefix(audio, []byte("OggS")):
		return speechpb.RecognitionConfig_OGG_OPUS
	case bytes.HasPrefix(audio, []byte{0x1a, 0x45, 0xdf, 0xa3}):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case bytes.HasPrefix(audio, []byte("ID3")):
		return speechpb.RecognitionConfig_MP3
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func firstTranscript(resp *speechpb.RecognizeResponse) string {
	if resp == nil {
		return ""
	}
	for _, res := range resp.Results {
		if res == nil || len(res.Alternatives) == 0 || res.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(res.Alternatives[0].Transcript); t != "" {
			return t
		}
	}
	return ""
}

func toAIError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &ai.AIError{Kind: ai.KindGeneric, Message: err.Error()}
	}
	kind := ai.KindGeneric
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = ai.KindMissingCredential
	case codes.ResourceExhausted:
		kind = ai.KindQuotaExceeded
	}
	return &ai.AIError{Kind: kind, Message: st.Message()}
}

package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// PollyAPI abstracts the Polly operation used by [PollyProvider].
// The [polly.Client] type satisfies this interface.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements the TTS Provider interface using Amazon Polly.
type PollyProvider struct {
	client PollyAPI
}

// NewPolly creates a Polly provider using the default AWS credential chain.
func NewPolly(ctx context.Context, region string) (*PollyProvider, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &PollyProvider{client: polly.NewFromConfig(cfg)}, nil
}

// NewPollyWithClient creates a Polly provider with a pre-built client.
func NewPollyWithClient(client PollyAPI) *PollyProvider {
	return &PollyProvider{client: client}
}

// Name returns the provider identifier.
func (p *PollyProvider) Name() string {
	return "polly"
}

// Synthesize converts text to speech with the neural engine.
func (p *PollyProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	voice := opts.Voice
	if voice == "" {
		voice = string(types.VoiceIdJoanna)
	}
	format := opts.Format
	if format == "" {
		format = string(types.OutputFormatMp3)
	}

	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(voice),
		OutputFormat: types.OutputFormat(format),
		Engine:       types.EngineNeural,
	})
	if err != nil {
		return nil, fmt.Errorf("polly synthesize: %w", err)
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read polly audio stream: %w", err)
	}

	mimeType := aws.ToString(out.ContentType)
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	return &Synthesis{Audio: audio, MIMEType: mimeType}, nil
}

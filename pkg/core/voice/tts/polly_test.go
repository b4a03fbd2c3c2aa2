package tts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

type fakePolly struct {
	lastInput *polly.SynthesizeSpeechInput
	err       error
}

func (f *fakePolly) SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{
		AudioStream: io.NopCloser(strings.NewReader("mp3-bytes")),
		ContentType: aws.String("audio/mpeg"),
	}, nil
}

func TestPollySynthesize(t *testing.T) {
	t.Parallel()

	fake := &fakePolly{}
	p := NewPollyWithClient(fake)

	syn, err := p.Synthesize(context.Background(), "Hello candidate.", SynthesizeOptions{Voice: "Matthew"})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if string(syn.Audio) != "mp3-bytes" {
		t.Fatalf("audio = %q", syn.Audio)
	}
	if syn.MIMEType != "audio/mpeg" {
		t.Fatalf("mime = %q", syn.MIMEType)
	}

	in := fake.lastInput
	if aws.ToString(in.Text) != "Hello candidate." {
		t.Fatalf("text = %q", aws.ToString(in.Text))
	}
	if in.VoiceId != types.VoiceId("Matthew") {
		t.Fatalf("voice = %q", in.VoiceId)
	}
	if in.OutputFormat != types.OutputFormatMp3 {
		t.Fatalf("format = %q, want mp3 default", in.OutputFormat)
	}
	if in.Engine != types.EngineNeural {
		t.Fatalf("engine = %q, want neural", in.Engine)
	}
}

func TestPollySynthesize_Error(t *testing.T) {
	t.Parallel()

	p := NewPollyWithClient(&fakePolly{err: errors.New("throttled")})
	if _, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{}); err == nil {
		t.Fatal("expected error from client")
	}
}

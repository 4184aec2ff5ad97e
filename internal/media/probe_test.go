package media

import (
	"errors"
	"math"
	"testing"
)

const sampleProbe = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080,
     "r_frame_rate": "24000/1001", "avg_frame_rate": "24000/1001", "duration": "59.9"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "r_frame_rate": "0/0"}
  ],
  "format": {"duration": "60.060000"}
}`

func TestParseProbeJSON(t *testing.T) {
	res, err := ParseProbeJSON([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("ParseProbeJSON failed: %v", err)
	}

	if res.Width != 1920 || res.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", res.Width, res.Height)
	}
	if math.Abs(res.FPS-23.976) > 0.001 {
		t.Errorf("expected ~23.976 fps, got %f", res.FPS)
	}
	if res.Duration != 60.06 {
		t.Errorf("expected container duration 60.06, got %f", res.Duration)
	}
	if !res.HasAudio {
		t.Error("expected audio stream to be detected")
	}
	if res.VideoCodec != "h264" {
		t.Errorf("expected h264, got %q", res.VideoCodec)
	}
	if res.Streams != 2 {
		t.Errorf("expected 2 streams, got %d", res.Streams)
	}
}

func TestParseProbeJSON_Fallbacks(t *testing.T) {
	t.Run("stream duration when container has none", func(t *testing.T) {
		data := `{"streams":[{"codec_type":"video","width":64,"height":48,"r_frame_rate":"25/1","duration":"4.2"}],"format":{}}`
		res, err := ParseProbeJSON([]byte(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Duration != 4.2 {
			t.Errorf("expected 4.2, got %f", res.Duration)
		}
		if res.HasAudio {
			t.Error("expected no audio")
		}
	})

	t.Run("avg_frame_rate when r_frame_rate is unknown", func(t *testing.T) {
		data := `{"streams":[{"codec_type":"video","r_frame_rate":"0/0","avg_frame_rate":"30/1"}],"format":{"duration":"1"}}`
		res, err := ParseProbeJSON([]byte(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FPS != 30 {
			t.Errorf("expected 30, got %f", res.FPS)
		}
	})

	t.Run("default rate when none is usable", func(t *testing.T) {
		data := `{"streams":[{"codec_type":"video","r_frame_rate":"0/0","avg_frame_rate":""}],"format":{"duration":"1"}}`
		res, err := ParseProbeJSON([]byte(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FPS != DefaultFrameRate {
			t.Errorf("expected default %f, got %f", DefaultFrameRate, res.FPS)
		}
	})
}

func TestParseProbeJSON_Errors(t *testing.T) {
	if _, err := ParseProbeJSON([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}

	audioOnly := `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`
	if _, err := ParseProbeJSON([]byte(audioOnly)); !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("expected ErrNoVideoStream, got %v", err)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"25/1", 25, true},
		{"30000/1001", 30000.0 / 1001.0, true},
		{"24000/1001", 24000.0 / 1001.0, true},
		{"29.97", 29.97, true},
		{" 60 ", 60, true},
		{"0/0", 0, false},
		{"25/0", 0, false},
		{"0/1", 0, false},
		{"-25/1", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"a/b", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseFrameRate(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParseFrameRate(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseFrameRate(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

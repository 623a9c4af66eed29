package transcript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AudioFallbackConfig controls the last-resort download-and-transcribe path.
type AudioFallbackConfig struct {
	YtdlpPath    string
	WhisperPath  string
	WhisperModel string
	// Timeout bounds one download+transcribe attempt end to end.
	Timeout time.Duration
}

// AudioFallback downloads a video's audio with yt-dlp and transcribes it
// with the whisper CLI. It is a single attempt: the caller bounds it with a
// context deadline and treats any failure as terminal.
type AudioFallback struct {
	cfg AudioFallbackConfig
	log *zap.Logger
}

func NewAudioFallback(cfg AudioFallbackConfig, log *zap.Logger) *AudioFallback {
	if cfg.YtdlpPath == "" {
		cfg.YtdlpPath = "yt-dlp"
	}
	if cfg.WhisperPath == "" {
		cfg.WhisperPath = "whisper"
	}
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = "base"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AudioFallback{cfg: cfg, log: log}
}

func (f *AudioFallback) Transcribe(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	workdir, err := os.MkdirTemp("", "tb-audio-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(workdir)

	audioPath, err := f.downloadAudio(ctx, videoID, workdir)
	if err != nil {
		return "", err
	}
	return f.runWhisper(ctx, audioPath, workdir)
}

func (f *AudioFallback) downloadAudio(ctx context.Context, videoID, workdir string) (string, error) {
	outTemplate := filepath.Join(workdir, "audio.%(ext)s")
	cmd := exec.CommandContext(ctx, f.cfg.YtdlpPath,
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--no-playlist",
		"-o", outTemplate,
		"https://www.youtube.com/watch?v="+videoID,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.log.Warn("yt-dlp failed", zap.String("video_id", videoID), zap.String("output", tail(string(out), 500)))
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(workdir, "audio.*"))
	if err != nil || len(matches) == 0 {
		return "", errors.New("yt-dlp completed but produced no audio file")
	}
	return matches[0], nil
}

func (f *AudioFallback) runWhisper(ctx context.Context, audioPath, workdir string) (string, error) {
	outDir := filepath.Join(workdir, "whisper_out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, f.cfg.WhisperPath,
		audioPath,
		"--model", f.cfg.WhisperModel,
		"--output_format", "txt",
		"--output_dir", outDir,
		"--task", "transcribe",
		"--fp16", "False",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.log.Warn("whisper failed", zap.String("output", tail(string(out), 500)))
		return "", fmt.Errorf("whisper: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".txt"))
	if err != nil {
		// Whisper sometimes names outputs after the full input filename.
		matches, _ := filepath.Glob(filepath.Join(outDir, "*.txt"))
		if len(matches) == 0 {
			return "", errors.New("whisper finished but produced no transcript file")
		}
		data, err = os.ReadFile(matches[0])
		if err != nil {
			return "", err
		}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("whisper produced an empty transcript")
	}
	return text, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Engine is the transcode/overlay/concat contract the render pipeline drives.
// One implementation shells out to ffmpeg; tests substitute a fake.
type Engine interface {
	Normalize(ctx context.Context, input, output string, width, height, fps int) error
	EnsureAudio(ctx context.Context, input, output string) (string, error)
	Concat(ctx context.Context, parts []string, output string) error
	OverlayLogo(ctx context.Context, input, logo, output string, logoWidth int) error
	EnsurePNG(ctx context.Context, input, workDir string) (string, error)
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// FFmpeg runs the ffmpeg/ffprobe binaries
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	var errout bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errout

	if err := cmd.Run(); err != nil {
		return errout.String(), fmt.Errorf("%s failed: %w: %s", bin, err, lastLines(errout.String(), 3))
	}
	return out.String(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// Normalize re-encodes a video to the target resolution, frame rate and audio
// format so later concatenation never mixes stream parameters. The scale+pad
// filter letterboxes instead of distorting.
func (f *FFmpeg) Normalize(ctx context.Context, input, output string, width, height, fps int) error {
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black",
		width, height, width, height)

	_, err := f.run(ctx, f.FFmpegPath,
		"-y",
		"-i", input,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-r", strconv.Itoa(fps),
		"-vf", vf,
		"-c:a", "aac",
		"-ar", "44100",
		"-ac", "2",
		"-b:a", "128k",
		"-movflags", "+faststart",
		output,
	)
	return err
}

// EnsureAudio returns a path to a copy of input that certainly carries an
// audio stream, muxing in silence when the source has none. Intro/outro
// footage without audio would otherwise break concatenation.
func (f *FFmpeg) EnsureAudio(ctx context.Context, input, output string) (string, error) {
	hasAudio, err := f.hasAudioStream(ctx, input)
	if err != nil {
		return "", err
	}
	if hasAudio {
		return input, nil
	}

	_, err = f.run(ctx, f.FFmpegPath,
		"-y",
		"-i", input,
		"-f", "lavfi",
		"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-shortest",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		output,
	)
	if err != nil {
		return "", err
	}
	return output, nil
}

func (f *FFmpeg) hasAudioStream(ctx context.Context, path string) (bool, error) {
	out, err := f.run(ctx, f.FFprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Concat joins already-normalized parts with re-encoding, which keeps audio
// and video in sync across the splice points.
func (f *FFmpeg) Concat(ctx context.Context, parts []string, output string) error {
	listFile := filepath.Join(filepath.Dir(output), "concat_list.txt")
	var b strings.Builder
	for _, p := range parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	if err := os.WriteFile(listFile, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listFile)

	_, err := f.run(ctx, f.FFmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", "44100",
		"-ac", "2",
		output,
	)
	return err
}

// OverlayLogo burns the logo into the top-right corner, scaled to logoWidth
func (f *FFmpeg) OverlayLogo(ctx context.Context, input, logo, output string, logoWidth int) error {
	filter := fmt.Sprintf("[1:v]scale=%d:-1[logo];[0:v][logo]overlay=W-w-10:10", logoWidth)

	_, err := f.run(ctx, f.FFmpegPath,
		"-y",
		"-i", input,
		"-i", logo,
		"-filter_complex", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "copy",
		output,
	)
	return err
}

// EnsurePNG converts a logo image to PNG when it is not one already; the
// overlay filter needs an alpha-capable format.
func (f *FFmpeg) EnsurePNG(ctx context.Context, input, workDir string) (string, error) {
	if strings.EqualFold(filepath.Ext(input), ".png") {
		return input, nil
	}
	output := filepath.Join(workDir, "logo.png")
	if _, err := f.run(ctx, f.FFmpegPath, "-y", "-i", input, output); err != nil {
		return "", err
	}
	return output, nil
}

// ProbeDuration reads a media file's duration in seconds
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := f.run(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("unable to determine video duration: %w", err)
	}
	return dur, nil
}

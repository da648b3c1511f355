package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"
)

// StreamOptions describes one export stream: a continuous sequence of raw
// RGBA frames piped into a single ffmpeg process.
type StreamOptions struct {
	OutputPath  string
	Width       int
	Height      int
	FPS         int
	AudioPath   string // optional; muxed with -shortest when set
	EncoderName string
	Quality     int
}

// Encoder produces a video from a stream of frames.
type Encoder interface {
	Start(ctx context.Context, opts StreamOptions) (*Stream, error)
}

// FFmpegEncoder shells out to ffmpeg.
type FFmpegEncoder struct{}

// Stream is a running encode. Frames go in via WriteFrame in presentation
// order; Close finishes the file.
type Stream struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	log   bytes.Buffer
	w, h  int
}

// Start launches ffmpeg reading rawvideo RGBA from stdin.
func (e *FFmpegEncoder) Start(ctx context.Context, opts StreamOptions) (*Stream, error) {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", "-",
	}
	if opts.AudioPath != "" {
		args = append(args, "-i", opts.AudioPath, "-c:a", "aac", "-shortest")
	}
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", opts.FPS),
		"-c:v", opts.EncoderName,
	)
	args = append(args, qualityArgs(opts.EncoderName, opts.Quality)...)
	args = append(args, opts.OutputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	s := &Stream{cmd: cmd, w: opts.Width, h: opts.Height}
	cmd.Stdout = &s.log
	cmd.Stderr = &s.log

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	s.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}
	return s, nil
}

// WriteFrame pipes one frame. The image must match the stream dimensions.
func (s *Stream) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != s.w || b.Dy() != s.h {
		return fmt.Errorf("frame %dx%d does not match stream %dx%d", b.Dx(), b.Dy(), s.w, s.h)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*4 || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	_, err := s.stdin.Write(rgba.Pix)
	return err
}

// Close ends the frame stream and waits for ffmpeg to finish the file.
func (s *Stream) Close() error {
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w\n%s", err, s.log.String())
	}
	return nil
}

// qualityArgs maps the single quality knob onto encoder-specific flags.
func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox ignores -q:v on many versions; use bitrate instead.
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

// BestEncoder probes ffmpeg for a hardware H.264 encoder, falling back to
// libx264.
func BestEncoder() string {
	out, err := exec.Command("ffmpeg", "-encoders").CombinedOutput()
	if err == nil {
		for _, enc := range []string{"h264_videotoolbox", "h264_nvenc"} {
			if strings.Contains(string(out), enc) {
				return enc
			}
		}
	}
	return "libx264"
}

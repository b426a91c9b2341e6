package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

type FFProbeOutput struct {
	Streams []struct {
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		FrameRate      string `json:"r_frame_rate"`
		FrameCount     string `json:"nb_frames"`
		FrameCountRead string `json:"nb_read_frames"`
	} `json:"streams"`
}

type VideoInfo struct {
	InputPath  string
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int64
}

func parseVideoInfoFFProbeOutput(output string) (*FFProbeOutput, error) {
	var probeOutput FFProbeOutput
	if err := json.Unmarshal([]byte(output), &probeOutput); err != nil {
		return nil, fmt.Errorf("parsing probe output: %w\n%v", err, output)
	}

	if len(probeOutput.Streams) == 0 {
		return nil, errors.New("no video streams found")
	}

	return &probeOutput, nil
}

func parseFrameRate(rate string) (float64, error) {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid framerate format %q", rate)
	}

	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing framerate numerator: %w", err)
	}

	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing framerate denominator: %w", err)
	}

	if den == 0 {
		return 0, fmt.Errorf("invalid framerate %q", rate)
	}

	return num / den, nil
}

func GetVideoInfo(ctx context.Context, inputPath string) (*VideoInfo, string, error) {
	cmd := NewCommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-of", "json",
		inputPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, output, err
	}

	ffprobeOutput, err := parseVideoInfoFFProbeOutput(output)
	if err != nil {
		return nil, output, err
	}

	mainStream := ffprobeOutput.Streams[0]
	frameRate, err := parseFrameRate(mainStream.FrameRate)
	if err != nil {
		return nil, output, err
	}

	videoInfo := VideoInfo{
		InputPath: inputPath,
		Width:     mainStream.Width,
		Height:    mainStream.Height,
		FrameRate: frameRate,
	}

	if mainStream.FrameCount != "" && mainStream.FrameCount != "N/A" {
		// container already contains frame count, no need to count
		frameCount, err := strconv.ParseInt(mainStream.FrameCount, 10, 64)
		if err != nil {
			return nil, output, err
		}

		videoInfo.FrameCount = frameCount
		return &videoInfo, "", nil
	}

	// container doesn't have frame count, counting frames
	cmd = NewCommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_read_frames",
		"-of", "json",
		inputPath)

	output, err = cmd.CombinedOutput()
	if err != nil {
		return nil, output, err
	}

	ffprobeCountOutput, err := parseVideoInfoFFProbeOutput(output)
	if err != nil {
		return nil, output, err
	}

	frameCount, err := strconv.ParseInt(ffprobeCountOutput.Streams[0].FrameCountRead, 10, 64)
	if err != nil {
		return nil, output, err
	}

	videoInfo.FrameCount = frameCount
	return &videoInfo, output, nil
}

// VideoProcessor decodes a video into raw planar frames and encodes raw
// frames back into a video, both through ffmpeg pipes.
type VideoProcessor struct {
	videoInfo   VideoInfo
	options     FFmpegOptions
	pixelFormat PixelFormat
	frameSize   int

	reader *Command
	writer *Command
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func NewVideoProcessor(videoInfo *VideoInfo, options FFmpegOptions, pf PixelFormat) (*VideoProcessor, error) {
	if err := pf.CheckSize(videoInfo.Width, videoInfo.Height); err != nil {
		return nil, err
	}

	return &VideoProcessor{
		videoInfo:   *videoInfo,
		options:     options,
		pixelFormat: pf,
		frameSize:   pf.FrameSize(videoInfo.Width, videoInfo.Height),
	}, nil
}

func (vp *VideoProcessor) readerArgs() []string {
	args := []string{}
	if vp.options.HWAccelDecodeFlag != "" {
		args = append(args, "-hwaccel", vp.options.HWAccelDecodeFlag)
	}

	return append(args, "-i", vp.videoInfo.InputPath,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", vp.pixelFormat.Name,
		"pipe:1")
}

func (vp *VideoProcessor) writerArgs(outputPath string, outputFrameRate float64) []string {
	encoder := "libx264"
	if vp.options.HWAccelEncodeFlag != "" {
		encoder = vp.options.HWAccelEncodeFlag
	}

	return []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", vp.pixelFormat.Name,
		"-video_size", fmt.Sprintf("%dx%d", vp.videoInfo.Width, vp.videoInfo.Height),
		"-framerate", strconv.FormatFloat(outputFrameRate, 'f', -1, 64),
		"-i", "pipe:0",
		"-i", vp.videoInfo.InputPath,
		"-map", "0:v:0",
		"-map", "1:a?",
		"-c:v", encoder,
		"-c:a", "copy",
		"-crf", "20",
		outputPath,
	}
}

func (vp *VideoProcessor) StartReading(ctx context.Context) error {
	vp.reader = NewCommandContext(ctx, "ffmpeg", vp.readerArgs()...)
	vp.reader.DisableOutputBuffer()

	stdout, err := vp.reader.GetStdout()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}

	vp.stdout = stdout
	return vp.reader.Start()
}

func (vp *VideoProcessor) StartWriting(ctx context.Context, outputPath string, outputFrameRate float64) error {
	vp.writer = NewCommandContext(ctx, "ffmpeg", vp.writerArgs(outputPath, outputFrameRate)...)

	stdin, err := vp.writer.GetStdin()
	if err != nil {
		return fmt.Errorf("creating stdin pipe: %w", err)
	}

	vp.stdin = stdin
	return vp.writer.Start()
}

// ReadFrame fills buf with the next raw frame. buf must be FrameSize bytes.
func (vp *VideoProcessor) ReadFrame(buf []byte) error {
	_, err := io.ReadFull(vp.stdout, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("truncated frame: %w", err)
	}
	return err
}

func (vp *VideoProcessor) WriteFrame(buf []byte) error {
	_, err := vp.stdin.Write(buf)
	return err
}

// Output returns what both ffmpeg processes printed so far.
func (vp *VideoProcessor) Output() string {
	var b strings.Builder
	for _, cmd := range []*Command{vp.reader, vp.writer} {
		if cmd == nil {
			continue
		}
		b.WriteString("$ " + cmd.Name() + "\n")
		b.WriteString(cmd.GetOutput())
	}
	return b.String()
}

func (vp *VideoProcessor) Close() error {
	var errs []error

	if vp.stdin != nil {
		if err := vp.stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing stdin: %w", err))
		}
	}

	if vp.stdout != nil {
		if err := vp.stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing stdout: %w", err))
		}
	}

	if vp.writer != nil {
		if err := vp.writer.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("waiting for writer: %w", err))
		}
	}

	if vp.reader != nil {
		// the reader is killed when stdout closes early, that is not a failure
		_ = vp.reader.Wait()
	}

	return errors.Join(errs...)
}

func (vp *VideoProcessor) Width() int     { return vp.videoInfo.Width }
func (vp *VideoProcessor) Height() int    { return vp.videoInfo.Height }
func (vp *VideoProcessor) FrameSize() int { return vp.frameSize }

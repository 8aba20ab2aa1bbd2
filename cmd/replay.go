package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/logreplay/camserve/config"
	"github.com/logreplay/camserve/internal/camera"
	"github.com/logreplay/camserve/internal/eventmsg"
	"github.com/logreplay/camserve/internal/framereader"
	"github.com/logreplay/camserve/internal/telemetry"
	"github.com/logreplay/camserve/internal/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type ReplayOptions struct {
	Cameras      []string
	FPS          int
	Frames       int
	Loop         bool
	BusName      string
	ListenAddr   string
	OTLPEndpoint string
}

func NewReplayCommand() *cobra.Command {
	opts := &ReplayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Publish camera frames on the video bus",
		Long: `Replay camera frames onto the video bus at a fixed rate.

Each --camera names a camera, its frame size and optionally a raw NV12 file
holding tightly packed frames back to back. Cameras without a file replay a
synthetic test pattern.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return ExecuteReplay(ctx, cmd.OutOrStdout(), opts)
		},
		Example: `  # Replay a synthetic pattern on the road camera
  camserve replay --camera road:1928x1208

  # Replay recorded frames on two cameras, looping
  camserve replay --camera road:1928x1208:road.nv12 --camera driver:1928x1208:driver.nv12 --loop`,
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.Cameras, "camera", "c", []string{}, "Camera source as NAME:WIDTHxHEIGHT[:FILE] (repeatable)")
	flags.IntVar(&opts.FPS, "fps", config.GetReplayFPS(), "Frames per second per camera")
	flags.IntVar(&opts.Frames, "frames", 200, "Frames to synthesize for cameras without a file (0 for unbounded)")
	flags.BoolVar(&opts.Loop, "loop", config.GetReplayLoop(), "Restart from the first frame at the end of the input")
	flags.StringVar(&opts.BusName, "bus", config.GetBusName(), "Video bus name")
	flags.StringVar(&opts.ListenAddr, "listen", config.GetListenAddr(), "Address viewers attach to (empty to disable)")
	flags.StringVar(&opts.OTLPEndpoint, "otlp-endpoint", config.GetOTLPEndpoint(), "OTLP gRPC collector for metrics (empty to disable)")
	cmd.MarkFlagRequired("camera")

	return cmd
}

// replaySource is one camera's input during replay.
type replaySource struct {
	cam    camera.CameraType
	size   camera.Size
	reader camera.FrameReader
	frames uint32 // 0 means unbounded
	closer io.Closer
}

var cameraEventFields = [camera.NumCameras]eventmsg.Which{
	camera.RoadCam:     eventmsg.WhichRoadEncodeIdx,
	camera.DriverCam:   eventmsg.WhichDriverEncodeIdx,
	camera.WideRoadCam: eventmsg.WhichWideRoadEncodeIdx,
}

// parseCameraSource parses NAME:WIDTHxHEIGHT[:FILE].
func parseCameraSource(s string) (camera.CameraType, camera.Size, string, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return 0, camera.Size{}, "", errors.Errorf("invalid camera %q, expected NAME:WIDTHxHEIGHT[:FILE]", s)
	}
	cam, ok := camera.CameraByName(parts[0])
	if !ok {
		return 0, camera.Size{}, "", errors.Errorf("unknown camera %q (road, driver, wideRoad)", parts[0])
	}
	size, err := parseSize(parts[1])
	if err != nil {
		return 0, camera.Size{}, "", err
	}
	var path string
	if len(parts) == 3 {
		path = parts[2]
	}
	return cam, size, path, nil
}

func openSources(args []string, patternFrames int) ([]*replaySource, error) {
	var sources []*replaySource
	seen := map[camera.CameraType]bool{}
	closeAll := func() {
		for _, src := range sources {
			if src.closer != nil {
				src.closer.Close()
			}
		}
	}

	for _, arg := range args {
		cam, size, path, err := parseCameraSource(arg)
		if err != nil {
			closeAll()
			return nil, err
		}
		if seen[cam] {
			closeAll()
			return nil, errors.Errorf("camera %s given more than once", cam)
		}
		seen[cam] = true

		src := &replaySource{cam: cam, size: size}
		if path == "" {
			src.reader = framereader.NewPattern(size.Width, size.Height, patternFrames)
			if patternFrames > 0 {
				src.frames = uint32(patternFrames)
			}
		} else {
			f, err := framereader.Open(path, size.Width, size.Height)
			if err != nil {
				closeAll()
				return nil, errors.Wrapf(err, "failed to open frames for %s camera", cam)
			}
			src.reader = f
			src.frames = f.Frames()
			src.closer = f
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// replayEvent builds the index event announcing frame segmentID of pass.
func replayEvent(src *replaySource, frameID, segmentID uint32, pass int32, sof time.Duration) []byte {
	return eventmsg.MustEncode(&eventmsg.Event{
		LogMonoTime: uint64(sof),
		Valid:       true,
		Which:       cameraEventFields[src.cam],
		EncodeIdx: eventmsg.EncodeIndex{
			FrameID:         frameID,
			Type:            eventmsg.TypeFullHEVC,
			EncodeID:        frameID,
			SegmentNum:      pass,
			SegmentID:       segmentID,
			SegmentIDEncode: segmentID,
			TimestampSof:    uint64(sof),
			TimestampEof:    uint64(sof + time.Millisecond),
		},
	})
}

func ExecuteReplay(ctx context.Context, out io.Writer, opts *ReplayOptions) error {
	logger := util.GetLogger()

	if path := config.ConfigFileUsed(); path != "" {
		logger.Debug("Using config file", "path", path)
	}
	if opts.FPS <= 0 {
		return errors.Errorf("invalid frame rate %d", opts.FPS)
	}
	sources, err := openSources(opts.Cameras, opts.Frames)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no camera sources given")
	}
	defer func() {
		for _, src := range sources {
			if src.closer != nil {
				src.closer.Close()
			}
		}
	}()

	if opts.OTLPEndpoint != "" {
		shutdown, err := telemetry.Setup(ctx, "camserve", opts.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("Failed to flush metrics", "error", err)
			}
		}()
	}
	metrics, err := telemetry.Default()
	if err != nil {
		return err
	}

	var sizes [camera.NumCameras]camera.Size
	for _, src := range sources {
		sizes[src.cam] = src.size
	}
	srv := camera.NewServer(sizes,
		camera.WithBusName(opts.BusName),
		camera.WithListenAddr(opts.ListenAddr),
		camera.WithMetrics(metrics),
	)

	fmt.Fprintf(out, "Replaying %d camera(s) on bus %s at %d fps\n",
		len(sources), color.New(color.FgCyan).Sprint(opts.BusName), opts.FPS)
	if opts.ListenAddr != "" {
		for _, src := range sources {
			fmt.Fprintf(out, "  %-9s %s\n", src.cam, color.CyanString("ws://%s/streams/%s", opts.ListenAddr, src.cam))
		}
	}
	fmt.Fprintf(out, "(Press %s to stop.)\n", color.New(color.FgYellow, color.Bold).Sprint("Ctrl+C"))

	start := time.Now()
	published, pushErr := replayLoop(ctx, srv, sources, opts, start)

	srv.WaitForSent()
	if err := srv.Close(); err != nil {
		logger.Warn("Failed to stop camera server", "error", err)
	}

	printReplaySummary(out, srv.Stats(), published, time.Since(start))
	return pushErr
}

// replayLoop pushes one frame per camera per tick until every source is
// exhausted or ctx is done. It returns the number of pushed frames.
func replayLoop(ctx context.Context, srv *camera.Server, sources []*replaySource, opts *ReplayOptions, start time.Time) (int, error) {
	ticker := time.NewTicker(time.Second / time.Duration(opts.FPS))
	defer ticker.Stop()

	var (
		frameID uint32
		pushed  int
		pass    int32
		segment uint32
	)
	for {
		active := 0
		for _, src := range sources {
			if src.frames > 0 && segment >= src.frames {
				continue
			}
			active++
			event := replayEvent(src, frameID, segment, pass, time.Since(start))
			if err := srv.PushFrame(src.cam, src.reader, event); err != nil {
				return pushed, errors.Wrapf(err, "failed to push %s frame %d", src.cam, segment)
			}
			pushed++
		}
		frameID++
		segment++

		if active == 0 {
			if !opts.Loop {
				return pushed, nil
			}
			util.GetLogger().Debug("Restarting replay", "pass", pass+1)
			pass++
			segment = 0
			continue
		}

		select {
		case <-ctx.Done():
			return pushed, nil
		case <-ticker.C:
		}
	}
}

func printReplaySummary(out io.Writer, stats map[string]camera.ChannelStats, pushed int, elapsed time.Duration) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := []util.TableColumn{
		{Header: "CAMERA", Key: "camera"},
		{Header: "PUBLISHED", Key: "published"},
		{Header: "FAILED", Key: "failed"},
		{Header: "SKIPPED", Key: "skipped"},
		{Header: "CACHE HITS", Key: "hits"},
		{Header: "CACHE MISSES", Key: "misses"},
	}
	var rows []map[string]interface{}
	for _, name := range names {
		s := stats[name]
		if s.Published+s.Failed+s.Skipped+s.Malformed == 0 {
			continue
		}
		failed := fmt.Sprint(s.Failed)
		if s.Failed > 0 {
			failed = color.RedString(failed)
		}
		rows = append(rows, map[string]interface{}{
			"camera":    name,
			"published": s.Published,
			"failed":    failed,
			"skipped":   s.Skipped + s.Malformed,
			"hits":      s.CacheHits,
			"misses":    s.CacheMisses,
		})
	}

	fmt.Fprintf(out, "\nPushed %d frame(s) in %s\n", pushed, elapsed.Round(time.Millisecond))
	util.RenderTable(out, columns, rows)
}

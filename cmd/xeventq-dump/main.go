// Command xeventq-dump opens a window and logs every event the queue
// dispatches for it, until the window is closed or the process is
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/xeventq"
	"github.com/BurntSushi/xeventq/xgbwire"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/joeycumines/stumpy"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		display    = flag.String("display", "", "X display, defaults to $DISPLAY")
		poolSize   = flag.Int("pool", 0, "preallocated queue nodes")
		noCompress = flag.Bool("no-compress", false, "dispatch every motion and configure event")
		logLevel   = flag.String("log", "", "log level: trace, debug, info, warning, error")
	)
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if *display != "" {
		cfg.Display = *display
	}
	if *poolSize != 0 {
		cfg.PoolSize = *poolSize
	}
	if *noCompress {
		cfg.Compress = false
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := cfg.level()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	rates, err := cfg.warnRates()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr), stumpy.WithTimeField("ts")),
		stumpy.L.WithLevel(level),
	).Logger()

	c, err := xgbwire.Dial(cfg.Display)
	if err != nil {
		logger.Crit().Err(err).Log("could not connect to the X server")
		return 1
	}
	defer c.Close()

	win, err := createWindow(c, cfg)
	if err != nil {
		logger.Crit().Err(err).Log("could not create window")
		return 1
	}

	waker := xeventq.NewChanWaker()
	opts := []xeventq.Option{
		xeventq.WithWaker(waker),
		xeventq.WithLogger(logger),
		xeventq.WithWarnRates(rates),
		xeventq.WithCompression(cfg.Compress),
	}
	if cfg.PoolSize != 0 {
		opts = append(opts, xeventq.WithPoolSize(cfg.PoolSize))
	}
	q, err := xeventq.NewQueue(c, opts...)
	if err != nil {
		logger.Crit().Err(err).Log("invalid queue configuration")
		return 2
	}
	d := &dumper{log: logger}
	dispatcher, err := xeventq.NewDispatcher(q, d, append(opts, xeventq.WithErrorListener(d))...)
	if err != nil {
		logger.Crit().Err(err).Log("invalid dispatcher configuration")
		return 2
	}
	if err := q.Start(); err != nil {
		logger.Crit().Err(err).Log("could not start reader")
		return 1
	}

	logger.Info().
		Int("window", int(win)).
		Str("display", cfg.Display).
		Bool("compress", cfg.Compress).
		Log("listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := 0
loop:
	for !d.quit {
		select {
		case <-ctx.Done():
			break loop
		case <-waker.C():
		case <-q.Done():
			// only a dead connection stops the reader here; ProcessEvents
			// reports it
		}
		if err := dispatcher.ProcessEvents(xeventq.AllEvents); err != nil {
			logger.Crit().Err(err).Log("giving up")
			code = 1
			break
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Close(closeCtx); err != nil {
		logger.Err().Err(err).Log("closing queue")
	}
	dropped := q.Drain()

	qs, ds := q.Stats(), dispatcher.Stats()
	logger.Info().
		Int("dropped", dropped).
		Int64("enqueued", int64(qs.Enqueued)).
		Int64("heap_nodes", int64(qs.HeapNodes)).
		Int64("pool_refills", int64(qs.PoolRefills)).
		Int64("dispatched", int64(ds.Dispatched)).
		Int64("compressed", int64(ds.Compressed)).
		Int64("x_errors", int64(ds.Errors)).
		Log("done")
	return code
}

// createWindow opens the window whose events are dumped and registers for
// WM_DELETE_WINDOW, so closing it ends the program.
func createWindow(c *xgbwire.Conn, cfg config) (xproto.Window, error) {
	X, screen := c.X, c.Screen()

	wid, err := xproto.NewWindowId(X)
	if err != nil {
		return 0, err
	}
	mask := uint32(xproto.EventMaskKeyPress | xproto.EventMaskKeyRelease |
		xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
		xproto.EventMaskPointerMotion |
		xproto.EventMaskEnterWindow | xproto.EventMaskLeaveWindow |
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify)
	err = xproto.CreateWindowChecked(X, screen.RootDepth, wid, screen.Root,
		0, 0, cfg.Width, cfg.Height, 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{screen.WhitePixel, mask}).Check()
	if err != nil {
		return 0, err
	}

	xu, err := xgbutil.NewConnXgb(X)
	if err != nil {
		return 0, err
	}
	if err := ewmh.WmNameSet(xu, wid, cfg.Title); err != nil {
		return 0, err
	}
	if err := icccm.WmNameSet(xu, wid, cfg.Title); err != nil {
		return 0, err
	}
	if err := icccm.WmProtocolsSet(xu, wid, []string{"WM_DELETE_WINDOW"}); err != nil {
		return 0, err
	}

	if err := xproto.MapWindowChecked(X, wid).Check(); err != nil {
		return 0, err
	}
	return wid, nil
}

type dumper struct {
	log  *xeventq.Logger
	quit bool
}

func (d *dumper) HandleEvent(ev *xeventq.Event, responseType uint8) {
	d.log.Info().
		Int("type", int(responseType)).
		Int("seq", int(ev.Sequence())).
		Bool("send_event", ev.SendEvent()).
		Stringer("class", ev.Class()).
		Stringer("kind", ev.InputKind()).
		Int("size", len(ev.Raw)).
		Log("event")
	if ev.InputKind() == xeventq.InputCloseRequest {
		d.quit = true
	}
}

func (d *dumper) HandleError(err *xeventq.XError) {
	d.log.Warning().Err(err).Log("x error")
}

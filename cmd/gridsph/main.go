package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"diesel.com/gridsph/app"
	"diesel.com/gridsph/config"
	D "diesel.com/gridsph/device"
	F "diesel.com/gridsph/fluid"
)

func init() {
	//GL calls must stay on the main thread
	runtime.LockOSThread()
}

var (
	configFile  string
	profileMode string
	verbose     bool

	stopProfile interface{ Stop() }
)

func main() {
	root := &cobra.Command{
		Use:           "gridsph",
		Short:         "Grid accelerated SPH fluid in a box",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(verbose)
			return startProfile(profileMode)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if stopProfile != nil {
				stopProfile.Stop()
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "run file (see example-config); defaults apply without one")
	flags.StringVar(&profileMode, "profile", "", "write a cpu or mem profile to the working directory")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log device activity and source locations")

	root.AddCommand(runCmd(), serveCmd(), viewCmd(), exampleCmd())

	if err := root.Execute(); err != nil {
		if stopProfile != nil {
			stopProfile.Stop()
		}
		fmt.Fprintf(os.Stderr, "gridsph: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	flags := log.LstdFlags
	if verbose {
		flags |= log.Lshortfile
		D.SetOutput(os.Stderr)
	} else {
		D.SetOutput(io.Discard)
	}
	for _, l := range []*log.Logger{D.Logger, F.Logger, app.Logger} {
		l.SetFlags(flags)
	}
}

func startProfile(mode string) error {
	switch mode {
	case "":
		return nil
	case "cpu":
		stopProfile = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		stopProfile = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	default:
		return fmt.Errorf("unknown profile mode %q, want cpu or mem", mode)
	}
	return nil
}

func loadRun() (*config.Wrapper, error) {
	if configFile == "" {
		return config.DefaultWrapper(), nil
	}
	return config.ReadFile(configFile)
}

//signalContext ends on interrupt or terminate
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

//openScene loads the run file, builds the scene and starts the file watcher
//when one was given
func openScene(ctx context.Context, watch bool) (*app.Scene, error) {
	run, err := loadRun()
	if err != nil {
		return nil, err
	}
	sc, err := app.NewScene(run)
	if err != nil {
		return nil, err
	}
	if watch && configFile != "" {
		go func() {
			if err := sc.Watch(ctx, configFile); err != nil {
				app.Logger.Printf("config reload disabled: %v", err)
			}
		}()
	}
	return sc, nil
}

func runCmd() *cobra.Command {
	var frames int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate headless for a fixed number of frames and print diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			sc, err := openScene(ctx, false)
			if err != nil {
				return err
			}
			defer sc.Close(context.Background())

			n := sc.RunFile().Run.Frames
			if cmd.Flags().Changed("frames") {
				n = frames
			}
			settings := sc.Sim.Settings()
			fmt.Fprintln(cmd.OutOrStdout(), &settings)
			st, err := sc.RunFrames(ctx, n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st)
			if st.Escaped > 0 || st.NonFinite > 0 {
				return fmt.Errorf("%d particles escaped the box, %d non-finite", st.Escaped, st.NonFinite)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&frames, "frames", "n", 0, "override [Run] Frames")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream particle positions over a websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			sc, err := openScene(ctx, true)
			if err != nil {
				return err
			}
			defer sc.Close(context.Background())

			server := sc.RunFile().Server
			if cmd.Flags().Changed("addr") {
				server.Addr = addr
			}
			return app.NewStreamer(sc).ListenAndServe(ctx, server.Addr, server.FrameRate)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override [Server] Addr")
	return cmd
}

func viewCmd() *cobra.Command {
	var width, height int
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open an OpenGL window on the running simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			sc, err := openScene(ctx, true)
			if err != nil {
				return err
			}
			defer sc.Close(context.Background())

			viewer, err := app.NewViewer(sc, app.AppWindow{Width: width, Height: height, Name: "gridsph"})
			if err != nil {
				return err
			}
			defer viewer.Close()
			return viewer.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&width, "width", 1440, "window width")
	cmd.Flags().IntVar(&height, "height", 800, "window height")
	return cmd
}

func exampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example-config",
		Short: "Print a commented run file with every section",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.ExampleFile)
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/bridge"
	"github.com/Faultbox/rigbridge/internal/config"
	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
	"github.com/Faultbox/rigbridge/internal/rig"
	"github.com/Faultbox/rigbridge/pkg/basen"
	"github.com/Faultbox/rigbridge/pkg/math"
	"github.com/Faultbox/rigbridge/pkg/transport"
)

func (a *app) newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <rig.yaml>",
		Short: "Print the rig tree built from a fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openRig(args[0], false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rig: %s (%d nodes, deform=%v)\n", s.Tree.Name, s.Tree.Len(), s.Tree.IsDeformRig)
			s.Tree.Walk(func(n *rig.Node) bool {
				indent := strings.Repeat("  ", n.Depth())
				switch n.Type {
				case rig.ConnectorRoot, rig.ConnectorBone:
					fmt.Fprintf(out, "%s%s [%s]\n", indent, n.Name, n.Type)
				default:
					dir := "->"
					if !n.JointParentIsPrimaryEndpoint {
						dir = "<-"
					}
					fmt.Fprintf(out, "%s%s [%s %s %s]\n", indent, n.Name, n.Type, dir, n.ConnectorName)
				}
				return true
			})
			if dups := s.Tree.DuplicateNames(); len(dups) > 0 {
				fmt.Fprintf(out, "Duplicate names: %s\n", strings.Join(dups, ", "))
			}
			return nil
		},
	}
}

func (a *app) newEncodeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "encode <rig.yaml>",
		Short: "Write the transported rig export envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openRig(args[0], false)
			if err != nil {
				return err
			}
			data, err := s.EncodeBytes()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a transported payload and print its JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			tc := transport.Codec{Level: a.cfg.Transport.CompressionLevel}
			doc, ok := tc.Decode(data, a.cfg.Transport.TextMode)
			if !ok {
				return fmt.Errorf("%s: not a recognized payload", args[0])
			}
			var pretty any
			if err := json.Unmarshal(doc, &pretty); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		},
	}
}

func (a *app) newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <rig.yaml> <payload>",
		Short: "Load an animation onto a rig and print the native keyframes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openRig(args[0], false)
			if err != nil {
				return err
			}
			data, err := readInput(args[1])
			if err != nil {
				return err
			}
			p, err := s.Deserialize(data, a.cfg.Transport.TextMode)
			if err != nil {
				return err
			}
			rep, err := s.LoadAnimation(p)
			if err != nil {
				return err
			}
			seq, err := s.ToNativeTree()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d keyframes, %d poses (%d skipped, %d unknown nodes)\n",
				rep.Keyframes, rep.Poses, rep.Skipped, len(rep.UnknownNodes))
			for _, kf := range seq.Keyframes {
				fmt.Fprintf(out, "t=%.4f", kf.Time)
				for _, m := range kf.Markers {
					fmt.Fprintf(out, " marker=%s", m.Name)
				}
				fmt.Fprintln(out)
				for _, p := range kf.Poses {
					printPose(out, p, 1)
				}
			}
			return nil
		},
	}
}

func printPose(w io.Writer, p *host.Pose, depth int) {
	c := p.CFrame.Components()
	fmt.Fprintf(w, "%s%s pos=(%.4f, %.4f, %.4f) weight=%.0f %s/%s\n",
		strings.Repeat("  ", depth), p.Name,
		math.Round4(c[0]), math.Round4(c[1]), math.Round4(c[2]),
		p.Weight, p.EasingStyle, p.EasingDirection)
	for _, sp := range p.SubPoses {
		printPose(w, sp, depth+1)
	}
}

func (a *app) newBaseNCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "basen <codec> encode|decode <input>",
		Short: "Encode or decode with one of the base-N codecs",
		Long: "Codecs: base32, crockford, base64, base64url, hex, binary, z85.\n" +
			"encode reads bytes from <input> (a file or - for stdin); decode takes the text itself.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, ok := basen.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown codec %q", args[0])
			}
			switch args[1] {
			case "encode":
				data, err := readInput(args[2])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), codec.Encode(data))
				return nil
			case "decode":
				data, err := codec.Decode(strings.TrimSpace(args[2]))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			default:
				return fmt.Errorf("unknown mode %q (want encode or decode)", args[1])
			}
		},
	}
}

func (a *app) newPushCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "push <rig.yaml> <payload>",
		Short: "Load an animation onto a rig and send it to the authoring tool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openRig(args[0], true)
			if err != nil {
				return err
			}
			data, err := readInput(args[1])
			if err != nil {
				return err
			}
			p, err := s.Deserialize(data, a.cfg.Transport.TextMode)
			if err != nil {
				return err
			}
			if _, err := s.LoadAnimation(p); err != nil {
				return err
			}
			stored, err := s.Export(cmd.Context(), a.cfg.Bridge.Port, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported as %s\n", stored)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Animation name (default: chosen by the tool)")
	return cmd
}

func (a *app) newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <rig.yaml> <name>",
		Short: "Import an animation from the authoring tool onto a rig",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openRig(args[0], true)
			if err != nil {
				return err
			}
			rep, err := s.Import(cmd.Context(), a.cfg.Bridge.Port, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d keyframes, %d poses\n", args[1], rep.Keyframes, rep.Poses)
			return nil
		},
	}
}

func (a *app) newServeCmd() *cobra.Command {
	var armatures []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local stand-in for the authoring tool endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := fmt.Sprintf("%s:%d", a.cfg.Bridge.Host, a.cfg.Bridge.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           bridge.NewHandler(bridge.NewStore(armatures...)),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				_ = srv.Close()
			}()
			logger.Info("serving tool endpoint", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&armatures, "armature", nil, "Armature names to advertise")
	return cmd
}

// readInput reads a file, or stdin for "-".
func (a *app) newConfigCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				if err := a.cfg.Save(); err != nil {
					return fmt.Errorf("saving config: %w", err)
				}
				output = filepath.Join(config.ConfigDir(), "config.yaml")
			} else if err := a.cfg.SaveTo(output); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.yaml or .toml; default: user config dir)")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/dataguardian/internal/application/assessments"
	"github.com/bryanwahyu/dataguardian/internal/config"
	"github.com/bryanwahyu/dataguardian/internal/logging"
)

const (
	formatText  = "text"
	formatJSON  = "json"
	formatSARIF = "sarif"
)

// app holds flags shared by every subcommand.
type app struct {
	out      io.Writer
	in       io.Reader
	format   string
	cfgPath  string
	logLevel string
	noColor  bool

	cfg *config.Config
	log *zap.SugaredLogger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, in: os.Stdin}
	root := &cobra.Command{
		Use:           "dgscan",
		Short:         "DataGuardian - SOC2 IaC scanner, EU AI Act and model bias assessments",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.in = cmd.InOrStdin()
			return a.init()
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.format, "format", "f", formatText, "output format: text, json or sarif")
	f.StringVar(&a.cfgPath, "config", "", "config.yaml with scanner and fairness settings")
	f.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	f.BoolVar(&a.noColor, "no-color", false, "disable coloured text output")

	root.AddCommand(a.soc2Cmd(), a.classifyCmd(), a.assessCmd(), a.biasCmd())
	return root
}

func (a *app) init() error {
	switch a.format {
	case formatText, formatJSON, formatSARIF:
	default:
		return fmt.Errorf("unknown format %q (text, json, sarif)", a.format)
	}

	cfg := config.Defaults()
	if a.cfgPath != "" {
		var err error
		if cfg, err = config.Load(a.cfgPath); err != nil {
			return err
		}
	}
	lc := cfg.Logging
	if a.logLevel != "" {
		lc.Level = a.logLevel
	}
	log, err := logging.New(lc)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) color() bool {
	if a.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := a.out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func (a *app) styles() styles { return newStyles(a.color()) }

// assessments runs without persistence; results are only printed.
func (a *app) assessments() *assessments.Service {
	return assessments.New(nil, nil, a.cfg.Fairness.Weights, a.log)
}

// requireNotSARIF guards commands whose output has no SARIF form.
func (a *app) requireNotSARIF(cmd *cobra.Command) error {
	if a.format == formatSARIF {
		return fmt.Errorf("%s: sarif output is only available for soc2", cmd.Name())
	}
	return nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSON decodes path into v; "-" reads stdin.
func (a *app) readJSON(path string, v any) error {
	var r io.Reader = a.in
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

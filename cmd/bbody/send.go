package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/advdv/bbody/bsrv"
	"github.com/cockroachdb/errors"
)

// SendCLI posts a body file to a bbody service and prints the response.
type SendCLI struct {
	File        string `arg:"" help:"Body file" type:"existingfile"`
	ContentType string `help:"Content-Type of the body" short:"t" required:""`
	URL         string `help:"Base URL of the service" default:"http://localhost:8080"`
	Path        string `help:"Endpoint to post to" default:"/forms" enum:"/forms,/sections,/echo"`
}

func (s *SendCLI) Run(logger *slog.Logger) error {
	f, err := os.Open(s.File)
	if err != nil {
		return errors.Wrap(err, "open body")
	}
	defer f.Close()

	var status int
	err = bsrv.NewRequestBuilder(http.DefaultTransport, s.URL).
		Path(s.Path).
		Method(http.MethodPost).
		ContentType(s.ContentType).
		BodyReader(f).
		AddValidator(func(resp *http.Response) error {
			status = resp.StatusCode
			return nil
		}).
		ToWriter(os.Stdout).
		Fetch(context.Background())
	if err != nil {
		return errors.Wrapf(err, "post %s", s.Path)
	}

	logger.Debug("request completed", slog.Int("status", status))
	if status >= http.StatusBadRequest {
		return errors.Newf("service responded with %d %s", status, http.StatusText(status))
	}

	return nil
}

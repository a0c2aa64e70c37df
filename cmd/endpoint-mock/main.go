package main

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/endpoint-mock/pkg/daemon"
	"github.com/code-payments/endpoint-mock/pkg/grpc/app"
)

func main() {
	if err := app.Run(daemon.New()); err != nil {
		logrus.StandardLogger().WithError(err).Fatal("error running endpoint mock")
	}
}

// yard-manager reúne num só binário as tarefas de manutenção do banco do
// pátio: backups, patch do esquema e a auditoria completa somente leitura.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"patiotools/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCmd(os.Stdout)
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(cli.Report(ctx, os.Stderr, root.Name(), err))
}

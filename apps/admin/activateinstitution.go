package main

import "context"

func (cli *commandLine) activateInstitution(id int, host string) error {
	if host == "" {
		host = cli.conf.Domain.BaseDomain
	}
	return cli.instSvc.Activate(context.Background(), id, host)
}

// Command storage-init provisions the Azure tables and queue the Join API
// expects. Every resource is created idempotently, so it is safe to run on
// each deploy.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

const queueAlreadyExists = "QueueAlreadyExists"

type resourceKind string

const (
	kindTable resourceKind = "table"
	kindQueue resourceKind = "queue"
)

// resource is one named piece of Join storage, configured through env.
type resource struct {
	kind     resourceKind
	env      string
	required bool
}

// joinResources lists what the API reads and writes. The status queue is
// only needed when status writes go through the queue processor.
var joinResources = []resource{
	{kind: kindTable, env: "TASKS_TABLE", required: true},
	{kind: kindTable, env: "CONTACTS_TABLE", required: true},
	{kind: kindTable, env: "USERS_TABLE", required: true},
	{kind: kindQueue, env: "STATUS_QUEUE"},
}

type named struct {
	resource
	name string
}

// resolve pairs each resource with its configured name. A missing required
// name is an error; optional ones are skipped.
func resolve(getenv func(string) string, resources []resource) ([]named, error) {
	var out []named
	var missing []string
	for _, r := range resources {
		name := getenv(r.env)
		if name == "" {
			if r.required {
				missing = append(missing, r.env)
			}
			continue
		}
		out = append(out, named{resource: r, name: name})
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("join storage: unset %v", missing)
	}
	return out, nil
}

type provisioner struct {
	connStr string
	tables  *aztables.ServiceClient
}

func (p *provisioner) ensure(ctx context.Context, r named) error {
	switch r.kind {
	case kindTable:
		_, err := p.tables.NewClient(r.name).CreateTable(ctx, nil)
		if alreadyExists(err, string(aztables.TableAlreadyExists)) {
			return nil
		}
		return err
	case kindQueue:
		q, err := azqueue.NewQueueClientFromConnectionString(p.connStr, r.name, nil)
		if err != nil {
			return err
		}
		_, err = q.Create(ctx, nil)
		if alreadyExists(err, queueAlreadyExists) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown resource kind %q", r.kind)
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("join storage: STORAGE_CONNECTION_STRING is required")
	}
	wanted, err := resolve(os.Getenv, joinResources)
	if err != nil {
		log.Fatal(err)
	}
	tables, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		log.Fatalf("join storage: table service: %v", err)
	}
	log.WithField("resources", len(wanted)).Info("provisioning join storage")

	p := &provisioner{connStr: connStr, tables: tables}
	ctx := context.Background()
	for _, r := range wanted {
		fields := log.Fields{"kind": r.kind, "name": r.name}
		if err := p.ensure(ctx, r); err != nil {
			log.WithFields(fields).WithError(err).Fatal("join storage: provisioning failed")
		}
		log.WithFields(fields).Debug("ready")
	}
	log.Info("join storage provisioned")
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}

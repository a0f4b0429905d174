// Package editor wires the configuration store, key provisioning, table
// collectors and the backend gateway into the load/save workflow.
package editor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"amneziawg-webui/internal/collect"
	"amneziawg-webui/internal/form"
	"amneziawg-webui/internal/gateway"
	"amneziawg-webui/internal/keys"
	"amneziawg-webui/internal/logs"
	"amneziawg-webui/internal/serialize"
	"amneziawg-webui/internal/store"
	"amneziawg-webui/internal/tunnel"
)

// ErrSaveInProgress is returned when a save is requested while another one
// is still in flight.
var ErrSaveInProgress = errors.New("a save is already in progress")

// Gateway persists and retrieves documents.
type Gateway interface {
	Load(ctx context.Context) (tunnel.Document, error)
	Save(ctx context.Context, section tunnel.Section, cfg tunnel.Config) (gateway.SaveResult, error)
}

// Notifier receives short user-facing status messages.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(message string) { f(message) }

// Editor is one editing session.
type Editor struct {
	store      *store.Store
	keys       *keys.Provisioner
	serializer *serialize.Serializer
	gateway    Gateway
	notifier   Notifier
	saving     *semaphore.Weighted
}

// New creates an editor starting from default configuration. adapter supplies
// the dynamic peer and policy rows.
func New(gw Gateway, adapter form.Adapter, notifier Notifier, keyOpts keys.Options) *Editor {
	if notifier == nil {
		notifier = NotifierFunc(func(message string) {
			logs.Logger.Info(message)
		})
	}
	s := store.New()
	return &Editor{
		store:      s,
		keys:       keys.New(s, keyOpts),
		serializer: serialize.New(s, collect.NewPeerCollector(adapter), collect.NewPolicyCollector(adapter)),
		gateway:    gw,
		notifier:   notifier,
		saving:     semaphore.NewWeighted(1),
	}
}

// Store exposes the live configuration for field edits.
func (e *Editor) Store() *store.Store { return e.store }

// Keys exposes the key provisioner.
func (e *Editor) Keys() *keys.Provisioner { return e.keys }

// Load merges the backend's stored document into the session. It reports
// whether a document was found; on any failure the session is unchanged.
func (e *Editor) Load(ctx context.Context) (bool, error) {
	doc, err := e.gateway.Load(ctx)
	if errors.Is(err, gateway.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		logs.Logger.WithError(err).Warn("load configuration failed; keeping current values")
		return false, err
	}
	e.store.MergeLoaded(doc)
	return true, nil
}

// Serialize returns the document a save would transmit.
func (e *Editor) Serialize() tunnel.Config {
	return e.serializer.Serialize()
}

// Save sends the whole document to the section endpoint and notifies the
// outcome. Overlapping saves are refused with ErrSaveInProgress. Local state
// is never rolled back on failure.
func (e *Editor) Save(ctx context.Context, section tunnel.Section) (gateway.SaveResult, error) {
	if !e.saving.TryAcquire(1) {
		e.notifier.Notify(fmt.Sprintf("%s save ignored: another save is in progress", section.Label()))
		return gateway.SaveResult{}, ErrSaveInProgress
	}
	defer e.saving.Release(1)

	doc := e.serializer.Serialize()
	result, err := e.gateway.Save(ctx, section, doc)
	if err != nil || !result.OK {
		if err == nil {
			err = fmt.Errorf("%w: save %s", gateway.ErrRejected, section)
		}
		logs.Logger.WithError(err).WithField("section", string(section)).Warn("save failed")
		e.notifier.Notify(FailureMessage(section))
		return result, err
	}
	e.store.MarkClean()
	for _, warning := range result.Warnings {
		logs.Logger.WithField("section", string(section)).Warn(warning)
	}
	e.notifier.Notify(SuccessMessage(section))
	return result, nil
}

// SuccessMessage is the notification shown after a successful save.
func SuccessMessage(section tunnel.Section) string {
	if section == tunnel.SectionBasic {
		return "Basic settings saved"
	}
	return section.Label() + " saved"
}

// FailureMessage is the notification shown after a failed save.
func FailureMessage(section tunnel.Section) string {
	return "Failed to save " + section.Label()
}

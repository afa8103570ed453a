// Package seed registers targets and alert configs from a declarative YAML
// file. Entries whose name already exists are left untouched, so applying
// the same file on every boot is safe.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/HerbHall/vigil/internal/monitor"
	"github.com/HerbHall/vigil/internal/notify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the seed document.
type File struct {
	PollTargets []PollEntry `yaml:"poll_targets"`
	PushTargets []PushEntry `yaml:"push_targets"`
}

// PollEntry is one poll target with its alert channels.
type PollEntry struct {
	monitor.PollTargetParams `yaml:",inline"`
	Alerts                   []AlertEntry `yaml:"alerts"`
}

// PushEntry is one push target with its alert channels.
type PushEntry struct {
	monitor.PushTargetParams `yaml:",inline"`
	Alerts                   []AlertEntry `yaml:"alerts"`
}

// AlertEntry is one alert channel. Config carries the channel_config
// object and is converted to JSON before validation.
type AlertEntry struct {
	ChannelKind notify.Kind    `yaml:"channel_kind"`
	Config      map[string]any `yaml:"channel_config"`
}

// Service is the part of the monitor the seeder drives.
type Service interface {
	ListPollTargets(ctx context.Context) ([]monitor.PollTarget, error)
	ListPushTargets(ctx context.Context) ([]monitor.PushTarget, error)
	CreatePollTarget(ctx context.Context, p monitor.PollTargetParams) (*monitor.PollTarget, error)
	CreatePushTarget(ctx context.Context, p monitor.PushTargetParams) (*monitor.PushTarget, error)
	CreateAlertConfig(ctx context.Context, kind monitor.TargetKind, targetID string, p monitor.AlertConfigParams) (*monitor.AlertConfig, error)
}

// Summary reports what Apply did.
type Summary struct {
	PollCreated   int
	PushCreated   int
	AlertsCreated int
	Skipped       int
	// Created push targets, so their tokens can be handed to operators.
	NewPushTargets []monitor.PushTarget
}

// LoadFile reads and parses the seed file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Apply creates every target in f whose name is not yet registered for
// its kind, together with its alert configs. It stops at the first
// rejected entry.
func Apply(ctx context.Context, svc Service, f *File, logger *zap.Logger) (Summary, error) {
	var sum Summary

	pollNames, pushNames, err := existingNames(ctx, svc)
	if err != nil {
		return sum, err
	}

	for i := range f.PollTargets {
		e := &f.PollTargets[i]
		if pollNames[e.Name] {
			sum.Skipped++
			logger.Debug("seed poll target exists, skipping", zap.String("name", e.Name))
			continue
		}
		pt, err := svc.CreatePollTarget(ctx, e.PollTargetParams)
		if err != nil {
			return sum, fmt.Errorf("seed poll target %q: %w", e.Name, err)
		}
		pollNames[pt.Name] = true
		sum.PollCreated++
		n, err := applyAlerts(ctx, svc, monitor.KindPoll, pt.ID, e.Alerts)
		sum.AlertsCreated += n
		if err != nil {
			return sum, fmt.Errorf("seed alerts for %q: %w", e.Name, err)
		}
		logger.Info("seeded poll target", zap.String("name", pt.Name), zap.String("target_id", pt.ID))
	}

	for i := range f.PushTargets {
		e := &f.PushTargets[i]
		if pushNames[e.Name] {
			sum.Skipped++
			logger.Debug("seed push target exists, skipping", zap.String("name", e.Name))
			continue
		}
		pt, err := svc.CreatePushTarget(ctx, e.PushTargetParams)
		if err != nil {
			return sum, fmt.Errorf("seed push target %q: %w", e.Name, err)
		}
		pushNames[pt.Name] = true
		sum.PushCreated++
		sum.NewPushTargets = append(sum.NewPushTargets, *pt)
		n, err := applyAlerts(ctx, svc, monitor.KindPush, pt.ID, e.Alerts)
		sum.AlertsCreated += n
		if err != nil {
			return sum, fmt.Errorf("seed alerts for %q: %w", e.Name, err)
		}
		logger.Info("seeded push target", zap.String("name", pt.Name), zap.String("target_id", pt.ID))
	}

	return sum, nil
}

func existingNames(ctx context.Context, svc Service) (poll, push map[string]bool, err error) {
	polls, err := svc.ListPollTargets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list poll targets: %w", err)
	}
	pushes, err := svc.ListPushTargets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list push targets: %w", err)
	}
	poll = make(map[string]bool, len(polls))
	for i := range polls {
		poll[polls[i].Name] = true
	}
	push = make(map[string]bool, len(pushes))
	for i := range pushes {
		push[pushes[i].Name] = true
	}
	return poll, push, nil
}

func applyAlerts(ctx context.Context, svc Service, kind monitor.TargetKind, targetID string, alerts []AlertEntry) (int, error) {
	created := 0
	for _, a := range alerts {
		raw, err := json.Marshal(a.Config)
		if err != nil {
			return created, fmt.Errorf("encode %s channel_config: %w", a.ChannelKind, err)
		}
		if _, err := svc.CreateAlertConfig(ctx, kind, targetID, monitor.AlertConfigParams{
			ChannelKind:   a.ChannelKind,
			ChannelConfig: raw,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

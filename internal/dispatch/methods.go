package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"deskbridge/internal/notify"
	"deskbridge/internal/platform"
	"deskbridge/internal/secrets"
	"deskbridge/internal/tray"
)

// resultOK is the result of methods that return no payload.
var resultOK = map[string]any{"ok": true}

func (r *Router) methodTable() map[string]Handler {
	return map[string]Handler{
		"startBackgroundService":     r.startBackgroundService,
		"stopBackgroundService":      r.stopBackgroundService,
		"configureBackgroundService": r.configureBackgroundService,
		"scheduleBackgroundTask":     r.scheduleBackgroundTask,
		"cancelBackgroundTask":       r.cancelBackgroundTask,

		"secureStore":       r.secureStore,
		"secureRetrieve":    r.secureRetrieve,
		"secureDelete":      r.secureDelete,
		"secureContainsKey": r.secureContainsKey,
		"secureDeleteAll":   r.secureDeleteAll,

		"showNotification":       r.showNotification,
		"cancelNotification":     r.cancelNotification,
		"cancelAllNotifications": r.cancelAllNotifications,

		"showTrayIcon":      r.showTrayIcon,
		"hideTrayIcon":      r.hideTrayIcon,
		"updateTrayTooltip": r.updateTrayTooltip,
		"setTrayMenuItems":  r.setTrayMenuItems,

		"getPlatformVersion": r.getPlatformVersion,
		"checkPermission":    r.checkPermission,
	}
}

func (r *Router) startBackgroundService(ctx context.Context, params json.RawMessage) (any, error) {
	r.bg.Start(nil)
	return resultOK, nil
}

func (r *Router) stopBackgroundService(ctx context.Context, params json.RawMessage) (any, error) {
	r.bg.Stop()
	return resultOK, nil
}

func (r *Router) configureBackgroundService(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		IntervalMs int64 `json:"intervalMs"`
	}](params)
	if err != nil {
		return nil, err
	}
	if p.IntervalMs <= 0 {
		return nil, invalidArgs("intervalMs must be positive, got %d", p.IntervalMs)
	}
	r.bg.SetInterval(time.Duration(p.IntervalMs) * time.Millisecond)
	return resultOK, nil
}

func (r *Router) scheduleBackgroundTask(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		TaskID      string `json:"taskId"`
		DelayMillis int64  `json:"delayMillis"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.TaskID) == "" {
		return nil, invalidArgs("taskId must not be empty")
	}
	if p.DelayMillis < 0 {
		return nil, invalidArgs("delayMillis must not be negative, got %d", p.DelayMillis)
	}
	// Tasks scheduled over the wire carry no action of their own; the host
	// reacts to the task result event.
	r.bg.Schedule(p.TaskID, time.Duration(p.DelayMillis)*time.Millisecond, nil)
	return resultOK, nil
}

func (r *Router) cancelBackgroundTask(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		TaskID string `json:"taskId"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.TaskID) == "" {
		return nil, invalidArgs("taskId must not be empty")
	}
	r.bg.Cancel(p.TaskID)
	return resultOK, nil
}

func (r *Router) store(ctx context.Context) (secrets.Store, error) {
	if r.secrets == nil {
		return nil, secrets.ErrDisabled
	}
	return r.secrets, nil
}

func (r *Router) secureStore(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Key) == "" {
		return nil, invalidArgs("key must not be empty")
	}
	st, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Put(ctx, p.Key, []byte(p.Value)); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (r *Router) secureRetrieve(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		Key string `json:"key"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Key) == "" {
		return nil, invalidArgs("key must not be empty")
	}
	st, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	v, err := st.Get(ctx, p.Key)
	if errors.Is(err, secrets.ErrNotFound) {
		// Missing keys are an expected outcome for the caller, not a fault.
		return map[string]any{"value": nil}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"value": string(v)}, nil
}

func (r *Router) secureDelete(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		Key string `json:"key"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Key) == "" {
		return nil, invalidArgs("key must not be empty")
	}
	st, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Delete(ctx, p.Key); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (r *Router) secureContainsKey(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		Key string `json:"key"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Key) == "" {
		return nil, invalidArgs("key must not be empty")
	}
	st, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	has, err := st.Contains(ctx, p.Key)
	if err != nil {
		return nil, err
	}
	return map[string]any{"contains": has}, nil
}

func (r *Router) secureDeleteAll(ctx context.Context, params json.RawMessage) (any, error) {
	st, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.DeleteAll(ctx); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (r *Router) showNotification(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Body  string `json:"body"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, invalidArgs("title must not be empty")
	}
	id, err := r.notif.Show(ctx, notify.Notification{ID: p.ID, Title: p.Title, Body: p.Body})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

func (r *Router) cancelNotification(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		ID string `json:"id"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, invalidArgs("id must not be empty")
	}
	if err := r.notif.Cancel(ctx, p.ID); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (r *Router) cancelAllNotifications(ctx context.Context, params json.RawMessage) (any, error) {
	if err := r.notif.CancelAll(ctx); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (r *Router) showTrayIcon(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		IconPath string `json:"iconPath"`
		Tooltip  string `json:"tooltip"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.IconPath) == "" {
		return nil, invalidArgs("iconPath must not be empty")
	}
	r.tray.Show(p.IconPath, p.Tooltip)
	return resultOK, nil
}

func (r *Router) hideTrayIcon(ctx context.Context, params json.RawMessage) (any, error) {
	r.tray.Hide()
	return resultOK, nil
}

func (r *Router) updateTrayTooltip(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		Tooltip string `json:"tooltip"`
	}](params)
	if err != nil {
		return nil, err
	}
	r.tray.SetTooltip(p.Tooltip)
	return resultOK, nil
}

func (r *Router) setTrayMenuItems(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		Items []tray.MenuItem `json:"items"`
	}](params)
	if err != nil {
		return nil, err
	}
	for i, it := range p.Items {
		if !it.Separator && strings.TrimSpace(it.ID) == "" {
			return nil, invalidArgs("items[%d]: id must not be empty", i)
		}
	}
	r.tray.SetMenu(p.Items)
	return resultOK, nil
}

func (r *Router) getPlatformVersion(ctx context.Context, params json.RawMessage) (any, error) {
	return map[string]any{"version": platform.Version()}, nil
}

func (r *Router) checkPermission(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[struct {
		Permission string `json:"permission"`
	}](params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Permission) == "" {
		return nil, invalidArgs("permission must not be empty")
	}
	return map[string]any{"granted": platform.CheckPermission(p.Permission)}, nil
}

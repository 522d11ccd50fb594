package activity

import "strings"

const (
	VerbSessionCreated    = "session.created"
	VerbRouteChanged      = "route.changed"
	VerbSettingUpdated    = "setting.updated"
	VerbDatasetsRequested = "datasets.requested"

	ObjectSession  = "viewer.session"
	ObjectSetting  = "viewer.setting"
	ObjectDatasets = "viewer.datasets"
)

// Actor identifies who triggered an event. All fields are optional.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

// SessionCreated reports a new session and the proxy configuration it
// resolved.
func SessionCreated(sessionID string, actor Actor, configuration, scope string) Event {
	return build(VerbSessionCreated, ObjectSession, sessionID, sessionID, actor, map[string]any{
		"configuration": configuration,
		"scope":         scope,
	})
}

// RouteChanged reports a navigation transition. action is the history
// operation that accompanied it (push, back, replace or pop).
func RouteChanged(sessionID string, actor Actor, route, action string) Event {
	return build(VerbRouteChanged, ObjectSession, sessionID, sessionID, actor, map[string]any{
		"route":  route,
		"action": action,
	})
}

// SettingUpdated reports a persisted setting change. The object id is the
// setting name.
func SettingUpdated(sessionID string, actor Actor, name string, oldValue, newValue any) Event {
	meta := map[string]any{"name": name}
	if oldValue != nil {
		meta["old_value"] = oldValue
	}
	if newValue != nil {
		meta["new_value"] = newValue
	}
	return build(VerbSettingUpdated, ObjectSetting, name, sessionID, actor, meta)
}

// DatasetsRequested reports one batched remote load.
func DatasetsRequested(sessionID string, actor Actor, group string, names []string) Event {
	return build(VerbDatasetsRequested, ObjectDatasets, group, sessionID, actor, map[string]any{
		"group": group,
		"names": append([]string(nil), names...),
		"count": len(names),
	})
}

func build(verb, objectType, objectID, sessionID string, actor Actor, meta map[string]any) Event {
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		objectID = objectType
	}
	if sessionID != "" {
		meta["session_id"] = sessionID
	}
	return Event{
		Verb:       verb,
		SessionID:  sessionID,
		ActorID:    actor.ActorID,
		UserID:     actor.UserID,
		TenantID:   actor.TenantID,
		ObjectType: objectType,
		ObjectID:   objectID,
		Metadata:   meta,
	}
}

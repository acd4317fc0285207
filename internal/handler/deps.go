package handler

import (
	"warelay/internal/app/session"
	"warelay/internal/configs"
)

// AppDeps bundles the shared dependencies the HTTP handlers need.
type AppDeps struct {
	Sessions *session.Manager
	Config   *configs.AppConfig
}

package handler

import (
	"dmchat/internal/app/chat"
	"dmchat/internal/app/db"
	"dmchat/internal/app/storage"
	"dmchat/internal/configs"
)

// AppDeps bundles everything the HTTP handlers need.
type AppDeps struct {
	Manager  *chat.Manager
	Resolver *chat.Resolver
	Config   *configs.AppConfig
	Store    db.Store

	// Storage is nil when avatar storage is not configured.
	Storage storage.StorageService
}

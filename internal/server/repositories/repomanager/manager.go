package repomanager

import (
	"context"
	"database/sql"

	"github.com/paperclip/paperclip/internal/dbx"
	"github.com/paperclip/paperclip/internal/server/repositories/conversations"
	"github.com/paperclip/paperclip/internal/server/repositories/memory"
	"github.com/paperclip/paperclip/internal/server/repositories/messages"
	"github.com/paperclip/paperclip/internal/server/repositories/resources"
	"github.com/paperclip/paperclip/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	Messages(db dbx.DBTX) messages.Repository
	Memory(db dbx.DBTX) memory.Repository
	Resources(db dbx.DBTX) resources.Repository
}

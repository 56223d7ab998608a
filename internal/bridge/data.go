package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/abrahampo1/cryptogest-sub001/internal/attachments"
	"github.com/abrahampo1/cryptogest-sub001/internal/models"
	"github.com/abrahampo1/cryptogest-sub001/internal/store/clients"
	"github.com/abrahampo1/cryptogest-sub001/internal/store/documents"
	"github.com/abrahampo1/cryptogest-sub001/internal/store/invoices"
	"github.com/abrahampo1/cryptogest-sub001/internal/vault"
)

// Repositories are built per command over the session's database handle;
// they hold no state of their own and the handle belongs to the session.
func clientRepo(s *vault.Session) clients.Repository     { return clients.NewSQLiteRepository(s.DB()) }
func invoiceRepo(s *vault.Session) invoices.Repository   { return invoices.NewSQLiteRepository(s.DB()) }
func documentRepo(s *vault.Session) documents.Repository { return documents.NewSQLiteRepository(s.DB()) }

func attachmentService(s *vault.Session) *attachments.Service {
	return attachments.NewService(documentRepo(s), s.Attachments())
}

type idPayload struct {
	ID string `json:"id"`
}

func (r *Router) registerDataHandlers() {
	r.handlers["clients:list"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		return clientRepo(s).GetAll(ctx)
	}

	r.handlers["clients:get"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		p, err := decode[idPayload](payload)
		if err != nil {
			return nil, err
		}
		return clientRepo(s).GetByID(ctx, p.ID)
	}

	r.handlers["clients:save"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		c, err := decode[models.Client](payload)
		if err != nil {
			return nil, err
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		if err := clientRepo(s).CreateOrUpdate(ctx, &c); err != nil {
			return nil, err
		}
		return c, nil
	}

	r.handlers["clients:delete"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		p, err := decode[idPayload](payload)
		if err != nil {
			return nil, err
		}
		return nil, clientRepo(s).DeleteByID(ctx, p.ID)
	}

	r.handlers["invoices:list"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		return invoiceRepo(s).GetAll(ctx)
	}

	r.handlers["invoices:get"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		p, err := decode[idPayload](payload)
		if err != nil {
			return nil, err
		}
		return invoiceRepo(s).GetByID(ctx, p.ID)
	}

	r.handlers["invoices:save"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		inv, err := decode[models.Invoice](payload)
		if err != nil {
			return nil, err
		}
		if inv.ID == "" {
			inv.ID = uuid.NewString()
		}
		for i := range inv.Lines {
			if inv.Lines[i].ID == "" {
				inv.Lines[i].ID = uuid.NewString()
			}
			inv.Lines[i].InvoiceID = inv.ID
		}
		if err := invoiceRepo(s).CreateOrUpdate(ctx, &inv); err != nil {
			return nil, err
		}
		return inv, nil
	}

	r.handlers["invoices:delete"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		p, err := decode[idPayload](payload)
		if err != nil {
			return nil, err
		}
		return nil, invoiceRepo(s).DeleteByID(ctx, p.ID)
	}

	r.handlers["documents:list"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		return attachmentService(s).List(ctx)
	}

	r.handlers["documents:save"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		p, err := decode[struct {
			Name        string `json:"name"`
			ContentType string `json:"contentType"`
			Data        []byte `json:"data"` // base64 on the wire
		}](payload)
		if err != nil {
			return nil, err
		}
		return attachmentService(s).Save(ctx, p.Name, p.ContentType, p.Data, s.Key())
	}

	r.handlers["documents:load"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		p, err := decode[idPayload](payload)
		if err != nil {
			return nil, err
		}
		data, doc, err := attachmentService(s).Load(ctx, p.ID, s.Key())
		if err != nil {
			return nil, err
		}
		return struct {
			Document *models.Document `json:"document"`
			Data     []byte           `json:"data"`
		}{doc, data}, nil
	}

	r.handlers["documents:delete"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		s, err := r.requireSession()
		if err != nil {
			return nil, err
		}
		p, err := decode[idPayload](payload)
		if err != nil {
			return nil, err
		}
		return nil, attachmentService(s).Delete(ctx, p.ID)
	}
}

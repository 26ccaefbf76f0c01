package engine

import (
	"context"
	"encoding/json"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// AwardBuilder assembles an XP award.
//
//	res, err := eng.Award("combat-xp").To(player).Amount(150).Because("boss kill").Save(ctx)
type AwardBuilder struct {
	engine *Engine
	req    AwardRequest
	err    error
}

// Award starts an XP award on the metric named by slug.
func (e *Engine) Award(metric string) *AwardBuilder {
	return &AwardBuilder{engine: e, req: AwardRequest{Metric: metric}}
}

// To sets the recipient.
func (b *AwardBuilder) To(a models.Awardable) *AwardBuilder {
	b.req.Awardable = a
	return b
}

// Amount sets the XP amount; it must be positive.
func (b *AwardBuilder) Amount(n int64) *AwardBuilder {
	b.req.Amount = n
	return b
}

// Because records the reason of the award.
func (b *AwardBuilder) Because(reason string) *AwardBuilder {
	b.req.Reason = reason
	return b
}

// From records the source of the award.
func (b *AwardBuilder) From(source string) *AwardBuilder {
	b.req.Source = source
	return b
}

// WithMeta attaches metadata; raw JSON is kept as is, anything else is marshalled.
func (b *AwardBuilder) WithMeta(meta any) *AwardBuilder {
	b.req.Meta, b.err = encodeMeta(OpAward, meta)
	return b
}

// Save runs the award.
func (b *AwardBuilder) Save(ctx context.Context) (*Result, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.engine.AwardXP(ctx, b.req)
}

// GrantBuilder assembles an achievement or prize grant.
//
//	res, err := eng.Grant("first-blood").To(player).From("arena").Save(ctx)
type GrantBuilder struct {
	engine *Engine
	req    GrantRequest
	err    error
}

// Grant starts a grant of the reward named by slug.
func (e *Engine) Grant(slug string) *GrantBuilder {
	return &GrantBuilder{engine: e, req: GrantRequest{Slug: slug}}
}

// To sets the recipient.
func (b *GrantBuilder) To(a models.Awardable) *GrantBuilder {
	b.req.Awardable = a
	return b
}

// Because records the reason of the grant.
func (b *GrantBuilder) Because(reason string) *GrantBuilder {
	b.req.Reason = reason
	return b
}

// From records the source of the grant.
func (b *GrantBuilder) From(source string) *GrantBuilder {
	b.req.Source = source
	return b
}

// WithMeta attaches metadata.
func (b *GrantBuilder) WithMeta(meta any) *GrantBuilder {
	b.req.Meta, b.err = encodeMeta(OpGrant, meta)
	return b
}

// As forces the grant kind instead of detecting it from the slug.
func (b *GrantBuilder) As(kind string) *GrantBuilder {
	b.req.Kind = kind
	return b
}

// Save runs the grant.
func (b *GrantBuilder) Save(ctx context.Context) (*Result, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.engine.GrantReward(ctx, b.req)
}

func encodeMeta(op string, meta any) (json.RawMessage, error) {
	switch m := meta.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(m) > 0 && !json.Valid(m) {
			return nil, errs.InvalidArgument(op, "meta", "metadata is not valid JSON")
		}
		return m, nil
	case []byte:
		return encodeMeta(op, json.RawMessage(m))
	default:
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, &errs.Error{Op: op, Kind: errs.ErrInvalidArgument, Field: "meta", Message: "metadata cannot be encoded", Err: err}
		}
		return raw, nil
	}
}

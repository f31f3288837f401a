package screeningtype

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthprep/healthprep/internal/platform/corerr"
	"github.com/healthprep/healthprep/internal/platform/db"
)

// RepoPG is the Postgres-backed Repository.
type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG { return &RepoPG{pool: pool} }

const screeningTypeColumns = `id, tenant_id, name, keywords, trigger_conditions, screening_category, variant_of_type_id, eligible_genders,
	min_age, max_age, frequency_value, frequency_unit, is_immunization, cvx_codes, loinc_codes,
	safe_title, criteria_signature, active, created_at, updated_at`

func scan(row pgx.Row) (*ScreeningType, error) {
	var st ScreeningType
	var keywordsJSON, triggersJSON, gendersJSON, cvxJSON, loincJSON []byte
	var unit, category string
	err := row.Scan(&st.ID, &st.TenantID, &st.Name, &keywordsJSON, &triggersJSON, &category, &st.VariantOfTypeID, &gendersJSON,
		&st.MinAge, &st.MaxAge, &st.FrequencyValue, &unit, &st.IsImmunization, &cvxJSON, &loincJSON,
		&st.SafeTitle, &st.CriteriaSignature, &st.Active, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "screening type not found")
		}
		return nil, fmt.Errorf("screeningtype: scan: %w", err)
	}
	st.FrequencyUnit = FrequencyUnit(unit)
	st.ScreeningCategory = Category(category)
	for _, pair := range []struct {
		raw []byte
		out *[]string
	}{{keywordsJSON, &st.Keywords}, {triggersJSON, &st.TriggerConditions}, {gendersJSON, &st.EligibleGenders}, {cvxJSON, &st.CVXCodes}, {loincJSON, &st.LOINCCodes}} {
		if err := json.Unmarshal(pair.raw, pair.out); err != nil {
			return nil, fmt.Errorf("screeningtype: decode json column: %w", err)
		}
	}
	return &st, nil
}

func (r *RepoPG) Create(ctx context.Context, st *ScreeningType) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	st.CriteriaSignature = ComputeSignature(st)

	keywords, _ := json.Marshal(st.Keywords)
	triggers, _ := json.Marshal(st.TriggerConditions)
	genders, _ := json.Marshal(st.EligibleGenders)
	cvx, _ := json.Marshal(st.CVXCodes)
	loinc, _ := json.Marshal(st.LOINCCodes)

	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO screening_type (id, tenant_id, name, keywords, trigger_conditions, screening_category, variant_of_type_id, eligible_genders,
			min_age, max_age, frequency_value, frequency_unit, is_immunization, cvx_codes, loinc_codes,
			safe_title, criteria_signature, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		st.ID, st.TenantID, st.Name, keywords, triggers, string(st.ScreeningCategory), st.VariantOfTypeID, genders,
		st.MinAge, st.MaxAge, st.FrequencyValue, string(st.FrequencyUnit), st.IsImmunization, cvx, loinc,
		st.SafeTitle, st.CriteriaSignature, st.Active)
	if err != nil {
		return fmt.Errorf("screeningtype: create: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ScreeningType, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+screeningTypeColumns+` FROM screening_type WHERE id=$1`, id)
	return scan(row)
}

// Update recomputes CriteriaSignature from the edited fields before
// writing, so a caller never has to remember to do it — and so the
// screening engine can compare the signature it last matched against to
// decide whether a selective refresh is required.
func (r *RepoPG) Update(ctx context.Context, st *ScreeningType) error {
	st.CriteriaSignature = ComputeSignature(st)

	keywords, _ := json.Marshal(st.Keywords)
	triggers, _ := json.Marshal(st.TriggerConditions)
	genders, _ := json.Marshal(st.EligibleGenders)
	cvx, _ := json.Marshal(st.CVXCodes)
	loinc, _ := json.Marshal(st.LOINCCodes)

	q := db.Resolve(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE screening_type SET name=$2, keywords=$3, trigger_conditions=$4, screening_category=$5, variant_of_type_id=$6, eligible_genders=$7,
			min_age=$8, max_age=$9, frequency_value=$10, frequency_unit=$11, is_immunization=$12,
			cvx_codes=$13, loinc_codes=$14, safe_title=$15, criteria_signature=$16, active=$17, updated_at=NOW()
		WHERE id=$1`,
		st.ID, st.Name, keywords, triggers, string(st.ScreeningCategory), st.VariantOfTypeID, genders, st.MinAge, st.MaxAge, st.FrequencyValue,
		string(st.FrequencyUnit), st.IsImmunization, cvx, loinc, st.SafeTitle, st.CriteriaSignature, st.Active)
	if err != nil {
		return fmt.Errorf("screeningtype: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.New(corerr.KindNotFound, "screening type not found")
	}
	return nil
}

func (r *RepoPG) ListEffective(ctx context.Context, tenantID uuid.UUID) ([]*ScreeningType, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `
		SELECT `+screeningTypeColumns+` FROM screening_type
		WHERE active = TRUE AND (tenant_id IS NULL OR tenant_id = $1)
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("screeningtype: list effective: %w", err)
	}
	defer rows.Close()

	var out []*ScreeningType
	for rows.Next() {
		st, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

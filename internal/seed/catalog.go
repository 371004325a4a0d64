package seed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LoadCatalog ingests the product CSV (codigo, nombre, categoria, precio_usd,
// stock, stock_minimo) into productos, ignoring rows whose codigo already
// exists. A missing file is not an error; the catalog is optional.
func LoadCatalog(db *sqlx.DB, csvPath string, log zerolog.Logger) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Info().Str("path", csvPath).Msg("no product catalog to seed")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Warn().Err(err).Msg("unable to read catalog header")
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Warn().Err(err).Msg("unable to start catalog transaction")
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO productos (codigo, nombre, categoria, precio_usd, stock, stock_minimo, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Warn().Err(err).Msg("unable to prepare catalog insert")
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("unable to read catalog row")
			continue
		}
		if len(record) < 4 {
			continue
		}
		codigo := strings.TrimSpace(record[0])
		nombre := strings.TrimSpace(record[1])
		categoria := strings.TrimSpace(record[2])
		if codigo == "" || nombre == "" {
			continue
		}
		precio, err := decimal.NewFromString(strings.TrimSpace(record[3]))
		if err != nil || precio.Sign() < 0 {
			log.Warn().Str("codigo", codigo).Msg("skipping catalog row with bad price")
			continue
		}
		stock := int64(0)
		if len(record) > 4 {
			stock, _ = strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
		}
		minimo := int64(5)
		if len(record) > 5 {
			if v, err := strconv.ParseInt(strings.TrimSpace(record[5]), 10, 64); err == nil {
				minimo = v
			}
		}

		if _, err := stmt.Exec(codigo, nombre, categoria, precio.String(), stock, minimo, now, now); err != nil {
			log.Warn().Err(err).Str("codigo", codigo).Msg("unable to insert product")
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("unable to commit catalog seed")
		return
	}
	log.Info().Int("rows", rows).Msg("seeded product catalog")
}

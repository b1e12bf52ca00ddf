package seed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LoadCatalog ingests a medicine CSV into the catalog, ignoring rows that
// already exist. Expected columns: name, manufacturer, price, quantity,
// is_discontinued, medicine_type, pack_size, composition1, composition2.
func LoadCatalog(db *sqlx.DB, csvPath string, log zerolog.Logger) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Warn().Err(err).Str("path", csvPath).Msg("unable to load medicine catalog")
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
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO medicines
        (name, manufacturer, price, quantity, is_discontinued, medicine_type, pack_size, composition1, composition2)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Warn().Err(err).Msg("unable to prepare catalog insert")
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

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
		if len(record) < 9 {
			continue
		}
		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}
		manufacturer := strings.TrimSpace(record[1])

		price, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(record[2]), "₹"))
		if err != nil || price.IsNegative() {
			log.Warn().Str("name", name).Str("price", record[2]).Msg("skipping row with bad price")
			continue
		}
		quantity, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
		if err != nil || quantity < 0 {
			quantity = 0
		}
		discontinued := strings.EqualFold(strings.TrimSpace(record[4]), "true")

		if _, err := stmt.Exec(
			name, manufacturer, price.StringFixed(2), quantity, discontinued,
			strings.TrimSpace(record[5]), strings.TrimSpace(record[6]),
			strings.TrimSpace(record[7]), strings.TrimSpace(record[8]),
		); err != nil {
			log.Warn().Err(err).Str("name", name).Msg("unable to insert medicine")
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("unable to commit catalog seed")
		return
	}
	log.Info().Int("rows", rows).Msg("seeded medicine catalog")
}

package desktop

import (
	"fmt"

	"istechat/answerer/answerer"
)

// ReadQuestions loads the questions of a CSV, TSV or plain text file, detecting
// CSV columns with the configured header candidates.
func ReadQuestions(path string, columns answerer.ColumnCandidates) ([]string, error) {
	answerer.SetColumnCandidates(columns)
	records, err := answerer.ParseInputRecords(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dosyada soru bulunamadı: %s", path)
	}
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Question
	}
	return texts, nil
}

package portal

import (
	"encoding/json"
	"strconv"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Data *struct {
		Ticket string `json:"ticket"`
	} `json:"data"`
}

// ticket returns the session ticket, empty when absent
func (r *loginResponse) ticket() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.Ticket
}

type orderListResponse struct {
	Data *struct {
		ResultMap *orderListPage `json:"resultMap"`
	} `json:"data"`
}

type orderListPage struct {
	RecordTotal json.Number      `json:"recordTotal"`
	List        []map[string]any `json:"list"`
}

func (r *orderListResponse) page() *orderListPage {
	if r.Data == nil {
		return nil
	}
	return r.Data.ResultMap
}

// total returns recordTotal, zero when the field is absent or null
func (p *orderListPage) total() (int, error) {
	if p.RecordTotal == "" {
		return 0, nil
	}
	return strconv.Atoi(p.RecordTotal.String())
}

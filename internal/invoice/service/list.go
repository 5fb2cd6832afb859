package service

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	paging "github.com/smallbiznis/studioledger/pkg/db/pagination"
)

func pagination(size int) int {
	return paging.ClampPageSize(size, 20)
}

func decodeCursor(token string) (snowflake.ID, error) {
	cursor, err := paging.DecodeCursor(strings.TrimSpace(token))
	if err != nil {
		return 0, err
	}
	return parseID(cursor.ID)
}

func buildPage(items []*invoicedomain.Invoice, limit int) ([]*invoicedomain.Invoice, paging.PageInfo) {
	return paging.BuildCursorPageInfo(items, limit, func(item *invoicedomain.Invoice) string {
		token, err := paging.EncodeCursor(paging.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
}

package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"repbaza/internal/model"
)

func testBooking(date, start string, hours int) model.Booking {
	st, _ := time.Parse(model.DateLayout+" "+model.TimeLayout, date+" "+start)
	return model.Booking{
		IDs:         []int64{1},
		StartTime:   st,
		EndTime:     st.Add(time.Duration(hours) * time.Hour),
		Date:        date,
		UserID:      100,
		GroupName:   "Звуки Му",
		BookingType: "Репетиция",
		ContactInfo: "@ivan",
		Status:      model.StatusConfirmed,
	}
}

func TestSchedule(t *testing.T) {
	dates := []string{"2026-09-01", "2026-09-02"}
	byDate := map[string][]model.Booking{
		"2026-09-01": {testBooking("2026-09-01", "18:00", 2)},
	}

	wb, err := Schedule(dates, byDate)
	require.NoError(t, err)
	defer wb.Close()

	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, dates, f.GetSheetList())

	rows, err := f.GetRows("2026-09-01")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Дата", rows[0][0])
	assert.Equal(t, "18:00", rows[1][1])
	assert.Equal(t, "20:00", rows[1][2])
	assert.Equal(t, "Звуки Му", rows[1][4])

	// The empty day still has its sheet, header only.
	rows, err = f.GetRows("2026-09-02")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestScheduleNoDates(t *testing.T) {
	_, err := Schedule(nil, nil)
	assert.Error(t, err)
}

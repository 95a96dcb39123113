package telegram

import (
	"bytes"
	"image/color"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

type blockKind int

const (
	blockFree blockKind = iota
	blockConfirmed
	blockPending
)

// WeekBlock is a coloured interval on a day column, in minutes after SAST midnight.
type WeekBlock struct {
	Start int
	End   int
	Kind  blockKind
	Label string
}

// WeekDay is one column of the week image.
type WeekDay struct {
	Date    time.Time
	Holiday string
	Blocks  []WeekBlock
}

const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 130
	dayPaddingX      = 8
	minBlockHeight   = 8.0
	blockRadius      = 6.0
	shadowOffset     = 3.0
	daysInWeek       = 7
	defaultFirstHour = 8
	defaultLastHour  = 18
)

const (
	titleFontSize  = 25.0
	dayFontSize    = 24.0
	hourFontSize   = 18.0
	blockFontSize  = 16.0
	legendFontSize = 13.0
)

var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 90}
	holidayBgColor   = color.NRGBA{200, 190, 160, 255}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{220, 220, 220, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	freeColor       = color.RGBA{133, 193, 85, 220}
	confirmedColor  = color.RGBA{255, 182, 193, 255}
	pendingColor    = color.RGBA{250, 215, 120, 255}
	blockTextColor  = color.RGBA{20, 24, 28, 230}
	bookedTextColor = color.RGBA{120, 40, 50, 255}
	shadowColor     = color.RGBA{0, 0, 0, 20}
	legendTextColor = color.RGBA{70, 74, 78, 220}
)

type hourRange struct {
	start int
	end   int
	total int
}

var (
	fontsOnce   sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font
)

// loadFont sets a Go font face of the given size, falling back to basicfont.
func loadFont(dc *gg.Context, size float64, bold bool) {
	fontsOnce.Do(func() {
		regularFont, _ = opentype.Parse(goregular.TTF)
		boldFont, _ = opentype.Parse(gobold.TTF)
	})

	f := regularFont
	if bold {
		f = boldFont
	}
	if f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// RenderWeekImage draws the seven days as columns with free time and bookings, and
// returns the PNG.
func RenderWeekImage(days []WeekDay, now time.Time) ([]byte, error) {
	today := timeutil.Today(now)
	hours := calculateHourRange(days)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / daysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, days)
	drawHourLabels(dc, hours, cellHeight)

	todayIndex := -1
	for i, day := range days {
		if i == daysInWeek {
			break
		}
		x := float64(leftLabelsWidth + i*dayWidth)
		y := float64(headerHeight)
		isToday := day.Date.Equal(today)
		if isToday {
			todayIndex = i
		}

		drawDayBackground(dc, x, y, dayWidth, dayHeight, i, isToday, day.Holiday != "")
		drawDayHeader(dc, day, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, b := range day.Blocks {
			drawBlock(dc, b, x, y, dayWidth, hours, cellHeight)
		}
	}

	if todayIndex >= 0 {
		drawCurrentTimeLine(dc, timeutil.MinuteOfDay(today, now), hours, cellHeight, dayWidth)
	}
	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// calculateHourRange spans every block plus an hour either side, or office hours for
// an empty week.
func calculateHourRange(days []WeekDay) hourRange {
	first, last := 24*60, 0
	for _, d := range days {
		for _, b := range d.Blocks {
			first = min(first, b.Start)
			last = max(last, b.End)
		}
	}

	startHour, endHour := defaultFirstHour, defaultLastHour
	if first < last {
		startHour = max(first/60-1, 0)
		endHour = min((last+59)/60+1, 24)
	}
	return hourRange{start: startHour, end: endHour, total: endHour - startHour}
}

func drawHeader(dc *gg.Context, days []WeekDay) {
	if len(days) == 0 {
		return
	}
	first, last := days[0].Date, days[len(days)-1].Date

	title := first.Format("January 2006")
	if first.Month() != last.Month() {
		title = first.Format("January") + " - " + last.Format("January 2006")
	}

	loadFont(dc, titleFontSize, true)
	dc.SetColor(textColor)
	_, h := dc.MeasureString(title)
	dc.DrawStringAnchored(title, float64(leftLabelsWidth), float64(headerHeight)/8+h/2, 0, 0)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	loadFont(dc, hourFontSize, false)
	dc.SetColor(hourLabelColor)

	for i := 0; i <= hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawStringAnchored(timeutil.FormatClock((hours.start+i)*60), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, dayIndex int, isToday, isHoliday bool) {
	switch {
	case isToday:
		dc.SetColor(todayBgColor)
	case isHoliday:
		dc.SetColor(holidayBgColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, day WeekDay, x, y float64, dayWidth int) {
	center := x + float64(dayWidth)/2

	loadFont(dc, dayFontSize, true)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(day.Date.Format("02.01"), center, y, 0.5, -1.2)
	dc.DrawStringAnchored(day.Date.Format("Mon"), center, y, 0.5, -0.3)

	if day.Holiday != "" {
		loadFont(dc, legendFontSize, false)
		dc.DrawStringAnchored(truncate(day.Holiday, 18), center, y+14, 0.5, 0)
	}
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)

	for i := 0; i <= hours.total; i++ {
		hy := y + float64(i)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

func drawBlock(dc *gg.Context, b WeekBlock, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	startHour := float64(b.Start) / 60
	endHour := float64(b.End) / 60

	blockY := y + (startHour-float64(hours.start))*cellHeight
	blockHeight := max((endHour-startHour)*cellHeight, minBlockHeight)
	blockWidth := float64(dayWidth) - float64(dayPaddingX*2)
	fill := blockColor(b.Kind)

	dc.SetColor(shadowColor)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, blockY+2+shadowOffset, blockWidth, blockHeight-4, blockRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x+dayPaddingX, blockY+2, blockWidth, blockHeight-4, blockRadius)
	dc.Fill()

	dc.SetColor(darkenColor(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+dayPaddingX, blockY+2, blockWidth, blockHeight-4, blockRadius)
	dc.Stroke()

	text := blockTextColor
	if b.Kind != blockFree {
		text = bookedTextColor
	}

	loadFont(dc, blockFontSize, false)
	dc.SetColor(text)
	txtX := x + dayPaddingX + 8
	txtY := blockY + 18
	dc.DrawStringAnchored(timeutil.FormatClock(b.Start)+"-"+timeutil.FormatClock(b.End), txtX, txtY, 0, 0)

	if b.Label != "" && blockHeight > 40 {
		loadFont(dc, blockFontSize-2, false)
		dc.DrawStringAnchored(truncate(b.Label, 18), txtX, txtY+16, 0, 0)
	}
}

func blockColor(kind blockKind) color.RGBA {
	switch kind {
	case blockConfirmed:
		return confirmedColor
	case blockPending:
		return pendingColor
	default:
		return freeColor
	}
}

func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

func drawCurrentTimeLine(dc *gg.Context, minute int, hours hourRange, cellHeight float64, dayWidth int) {
	hour := float64(minute) / 60
	if hour < float64(hours.start) || hour > float64(hours.end) {
		return
	}

	y := float64(headerHeight) + (hour-float64(hours.start))*cellHeight
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2.0)
	dc.DrawLine(float64(leftLabelsWidth), y, float64(leftLabelsWidth+daysInWeek*dayWidth), y)
	dc.Stroke()
}

func drawLegend(dc *gg.Context, dayWidth int) {
	x := float64(leftLabelsWidth+daysInWeek*dayWidth) + 10
	y := float64(imageHeight) - 100.0

	items := []struct {
		label string
		clr   color.Color
	}{
		{"Free", freeColor},
		{"Confirmed", confirmedColor},
		{"Pending", pendingColor},
		{"Holiday", holidayBgColor},
	}

	const boxW, boxH = 20.0, 14.0
	loadFont(dc, legendFontSize, false)
	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(x, y, boxW, boxH, 3)
		dc.Fill()

		dc.SetColor(legendTextColor)
		dc.DrawStringAnchored(item.label, x+boxW+8, y+boxH/2+1, 0, 0.2)
		y += boxH + 10
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

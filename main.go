package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"istechat/answerer/answerer"
	"istechat/answerer/internal/desktop"
)

func main() {
	fyneApp := app.NewWithID("istechat.answerer")
	win := fyneApp.NewWindow("Soru-Cevap Asistanı")
	win.Resize(fyne.NewSize(960, 720))

	cfg, err := answerer.LoadConfig("")
	if err != nil {
		showFatalError(win, fmt.Errorf("ayarlar okunamadı: %w", err))
		return
	}

	logBinding := binding.NewString()
	capture := desktop.NewLogCapture(logBinding, 300)
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	logger := desktop.NewLogger(capture, zapcore.Lock(os.Stderr), level)
	defer logger.Sync()

	service, err := answerer.LoadService(cfg, logger)
	if err != nil {
		logger.Error("answer engine failed to load", zap.Error(err))
		showFatalError(win, fmt.Errorf("cevap motoru başlatılamadı: %w", err))
		return
	}
	defer service.Close()

	ctx := context.Background()
	cfgMu := sync.Mutex{}
	saveConfig := func() {
		cfgMu.Lock()
		defer cfgMu.Unlock()
		if err := answerer.SaveConfig("", cfg); err != nil {
			logger.Warn("config save failed", zap.Error(err))
		}
	}
	currentTopK := func() int {
		cfgMu.Lock()
		defer cfgMu.Unlock()
		return cfg.Search.TopK
	}

	transcript := desktop.NewTranscript(cfg.Server.MaxHistoryItems)
	var chatList *widget.List
	chatList = widget.NewList(
		transcript.Len,
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.Wrapping = fyne.TextWrapWord
			return label
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			label.SetText(transcript.At(id).Label())
			chatList.SetItemHeight(id, label.MinSize().Height)
		},
	)
	refreshChat := func() {
		chatList.Refresh()
		if transcript.Len() > 0 {
			chatList.ScrollToBottom()
		}
	}

	statusLabel := widget.NewLabel("Hazır")
	if !service.HasIndex() {
		statusLabel.SetText("Hazır (benzer soru araması kapalı)")
	}

	input := widget.NewEntry()
	input.SetPlaceHolder("Sorunuzu yazın ve Enter'a basın")

	var sendBtn *widget.Button
	send := func() {
		question := strings.TrimSpace(input.Text)
		if question == "" {
			return
		}
		input.SetText("")
		transcript.AddQuestion(question)
		refreshChat()
		sendBtn.Disable()
		statusLabel.SetText("Cevaplanıyor...")
		go func(q string, topK int) {
			start := time.Now()
			answer, err := service.Predict(ctx, q, topK)
			elapsed := time.Since(start)
			fyne.Do(func() {
				if err != nil {
					transcript.AddError(err)
					statusLabel.SetText("Hata oluştu")
				} else {
					transcript.AddAnswer(answer)
					statusLabel.SetText(fmt.Sprintf("Hazır (%.2fs)", elapsed.Seconds()))
				}
				sendBtn.Enable()
				refreshChat()
			})
		}(question, currentTopK())
	}
	sendBtn = widget.NewButton("Gönder", send)
	input.OnSubmitted = func(string) { send() }

	askFileBtn := widget.NewButton("Dosyadan sor", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				showError(win, err)
				return
			}
			if rc == nil {
				return
			}
			path := rc.URI().Path()
			rc.Close()
			texts, err := desktop.ReadQuestions(path, cfg.Columns)
			if err != nil {
				showError(win, err)
				return
			}
			statusLabel.SetText(fmt.Sprintf("%d soru cevaplanıyor...", len(texts)))
			go func() {
				answers, err := service.PredictAll(ctx, texts)
				fyne.Do(func() {
					if err != nil {
						statusLabel.SetText("Hata oluştu")
						showError(win, err)
						return
					}
					for i, a := range answers {
						transcript.AddQuestion(texts[i])
						transcript.AddAnswer(a)
					}
					statusLabel.SetText(fmt.Sprintf("%d soru cevaplandı", len(answers)))
					refreshChat()
				})
			}()
		}, win)
		fd.SetFilter(storage.NewExtensionFileFilter([]string{".txt", ".csv", ".tsv"}))
		fd.Show()
	})

	clearBtn := widget.NewButton("Temizle", func() {
		transcript.Clear()
		refreshChat()
	})

	topKSlider := widget.NewSlider(1, 10)
	topKSlider.Step = 1
	topKSlider.SetValue(float64(cfg.Search.TopK))
	topKLabel := widget.NewLabel(fmt.Sprintf("Benzer soru: %d", cfg.Search.TopK))
	topKSlider.OnChangeEnded = func(v float64) {
		k := int(v)
		topKLabel.SetText(fmt.Sprintf("Benzer soru: %d", k))
		cfgMu.Lock()
		cfg.Search.TopK = k
		cfgMu.Unlock()
		saveConfig()
	}

	info := service.Info()
	infoLabel := widget.NewLabel(fmt.Sprintf("Model: %s · %d etiket · %d kayıtlı soru",
		info.ModelID, info.Labels, info.IndexedQuestions))

	logLabel := widget.NewLabelWithData(logBinding)
	logLabel.Wrapping = fyne.TextWrapWord
	logContainer := container.NewVScroll(logLabel)
	logContainer.SetMinSize(fyne.NewSize(200, 120))

	inputRow := container.NewBorder(nil, nil, nil, sendBtn, input)
	top := container.NewVBox(
		infoLabel,
		container.NewHBox(askFileBtn, clearBtn, topKLabel, statusLabel),
		topKSlider,
	)
	chatPane := container.NewBorder(top, inputRow, nil, nil, chatList)
	logPane := container.NewBorder(widget.NewLabel("Günlük"), nil, nil, nil, logContainer)

	root := container.NewVSplit(chatPane, logPane)
	root.Offset = 0.78
	win.SetContent(root)
	win.Canvas().Focus(input)

	win.ShowAndRun()
}

func showFatalError(win fyne.Window, err error) {
	content := widget.NewLabel(err.Error())
	win.SetContent(content)
	dialog.ShowError(err, win)
	win.ShowAndRun()
}

func showError(win fyne.Window, err error) {
	if err != nil {
		dialog.ShowError(err, win)
	}
}

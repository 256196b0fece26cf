package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/x8080x2/CLS0-sub000/internal/redirect"
	"github.com/x8080x2/CLS0-sub000/internal/repository"
	"github.com/x8080x2/CLS0-sub000/internal/service"
)

// Bot is the Telegram front end. It collects (domain, redirectURL)
// pairs, gates them on the prepaid balance and hands them to the
// provisioning workflow.
type Bot struct {
	api         *tgbotapi.BotAPI
	adminChatID int64

	provision  *service.ProvisionService
	billing    *service.BillingService
	provisions *repository.ProvisionRepository
	sessions   *sessionStore
}

func New(token string, adminChatID int64, provision *service.ProvisionService, billing *service.BillingService, provisions *repository.ProvisionRepository) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Bot{
		api:         api,
		adminChatID: adminChatID,
		provision:   provision,
		billing:     billing,
		provisions:  provisions,
		sessions:    newSessionStore(),
	}, nil
}

// Run consumes the long-poll update stream until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	log.Printf("[Bot] Authorized as @%s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	if _, err := b.billing.EnsureUser(ctx, userID, msg.From.UserName); err != nil {
		log.Printf("[Bot] Failed to register user %d: %v", userID, err)
	}

	if sess := b.sessions.get(userID); sess.State != stateIdle && !msg.IsCommand() {
		b.handleState(ctx, msg, sess)
		return
	}

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start", "menu":
		b.sessions.reset(userID)
		b.showMainMenu(msg.Chat.ID)
	case "balance":
		b.showBalance(ctx, msg.Chat.ID, userID)
	case "deposit":
		b.sessions.set(userID, &session{State: stateAwaitDeposit})
		b.send(msg.Chat.ID, "💰 *Top up balance*\n\nEnter the amount you want to deposit:")
	case "history":
		b.showHistory(ctx, msg.Chat.ID, userID)
	case "pending":
		if b.isAdmin(userID) {
			b.showPendingDeposits(ctx, msg.Chat.ID)
		}
	case "stats":
		if b.isAdmin(userID) {
			b.showStats(ctx, msg.Chat.ID)
		}
	case "grant":
		if b.isAdmin(userID) {
			b.grantSubscription(ctx, msg.Chat.ID, msg.CommandArguments())
		}
	case "help":
		b.send(msg.Chat.ID, "Use /menu to open the main menu.\n\nA provisioning run creates the hosting account, uploads the redirect pages and configures DNS for your domain.")
	default:
		b.send(msg.Chat.ID, "❌ Unknown command. Use /menu to open the main menu.")
	}
}

func (b *Bot) handleState(ctx context.Context, msg *tgbotapi.Message, sess *session) {
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	switch sess.State {
	case stateAwaitDomain:
		domain, err := service.ValidateDomain(text)
		if err != nil {
			b.send(msg.Chat.ID, "❌ That does not look like a valid domain. Try again, e.g. `example.com`:")
			return
		}
		sess.Domain = domain
		sess.State = stateAwaitRedirect
		b.send(msg.Chat.ID, "🔗 *Redirect target*\n\nEnter the URL visitors should be forwarded to (must start with `http://` or `https://`):")

	case stateAwaitRedirect:
		redirectURL, err := service.ValidateRedirectURL(text)
		if err != nil {
			b.send(msg.Chat.ID, "❌ The URL must start with `http://` or `https://`. Try again:")
			return
		}
		sess.RedirectURL = redirectURL
		b.confirmProvision(msg.Chat.ID, sess)

	case stateAwaitDeposit:
		amount, err := strconv.ParseFloat(text, 64)
		if err != nil || amount <= 0 {
			b.send(msg.Chat.ID, "❌ The amount must be a number greater than 0. Try again:")
			return
		}
		b.sessions.reset(userID)
		b.requestDeposit(ctx, msg.Chat.ID, userID, amount)

	default:
		b.sessions.reset(userID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	// Telegram sends a nil Message for callbacks on inline messages or
	// messages too old to reference.
	if q.Message == nil {
		return
	}
	userID := q.From.ID
	chatID := q.Message.Chat.ID
	data := q.Data
	b.api.Request(tgbotapi.NewCallback(q.ID, ""))

	switch {
	case data == "menu_provision":
		b.sessions.set(userID, &session{State: stateAwaitDomain})
		b.send(chatID, "🌐 *New provisioning run*\n\nEnter the *domain* to set up (you must control it at your registrar):")
	case data == "menu_balance":
		b.showBalance(ctx, chatID, userID)
	case data == "menu_deposit":
		b.sessions.set(userID, &session{State: stateAwaitDeposit})
		b.send(chatID, "💰 *Top up balance*\n\nEnter the amount you want to deposit:")
	case data == "menu_history":
		b.showHistory(ctx, chatID, userID)
	case data == "menu_template":
		b.showTemplateMenu(chatID)
	case strings.HasPrefix(data, "tpl:"):
		template := strings.TrimPrefix(data, "tpl:")
		if err := b.billing.SetTemplate(ctx, userID, template); err != nil {
			b.send(chatID, "❌ Could not save your template choice.")
			return
		}
		b.send(chatID, fmt.Sprintf("🎨 Template set to `%s`.", template))
	case data == "confirm_provision":
		sess := b.sessions.get(userID)
		if sess.Domain == "" || sess.RedirectURL == "" {
			b.sessions.reset(userID)
			b.showMainMenu(chatID)
			return
		}
		b.sessions.reset(userID)
		b.runProvision(chatID, userID, sess.Domain, sess.RedirectURL)
	case data == "cancel":
		b.sessions.reset(userID)
		b.showMainMenu(chatID)
	case strings.HasPrefix(data, "dep_approve:"):
		if b.isAdmin(userID) {
			b.decideDeposit(ctx, chatID, userID, strings.TrimPrefix(data, "dep_approve:"), true)
		}
	case strings.HasPrefix(data, "dep_reject:"):
		if b.isAdmin(userID) {
			b.decideDeposit(ctx, chatID, userID, strings.TrimPrefix(data, "dep_reject:"), false)
		}
	}
}

func (b *Bot) showMainMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "🛠 *Main menu*\n\nWhat would you like to do?")
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌐 Provision domain", "menu_provision"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 Balance", "menu_balance"),
			tgbotapi.NewInlineKeyboardButtonData("➕ Deposit", "menu_deposit"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📜 History", "menu_history"),
			tgbotapi.NewInlineKeyboardButtonData("🎨 Template", "menu_template"),
		),
	)
	b.api.Send(msg)
}

func (b *Bot) showTemplateMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "🎨 *Redirect template*\n\nPick the page style used for your links:")
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏳ Delayed (default)", "tpl:"+redirect.TemplateDefault),
			tgbotapi.NewInlineKeyboardButtonData("⚡ Instant", "tpl:"+redirect.TemplateInstant),
		),
	)
	b.api.Send(msg)
}

func (b *Bot) confirmProvision(chatID int64, sess *session) {
	text := fmt.Sprintf(
		"⚙️ *Confirm provisioning*\n\n🌐 Domain: `%s`\n🔗 Redirect: `%s`\n💵 Cost: `%.2f`\n\nProceed?",
		sess.Domain, sess.RedirectURL, b.billing.Cost(),
	)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Start", "confirm_provision"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
	b.api.Send(msg)
}

// runProvision charges the user and executes the workflow. The run can
// take a minute, so it happens off the update loop.
func (b *Bot) runProvision(chatID, userID int64, domain, redirectURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	charged, err := b.billing.ChargeForProvision(ctx, userID)
	if err != nil {
		cancel()
		switch {
		case errors.Is(err, service.ErrInsufficientBalance):
			b.send(chatID, fmt.Sprintf("❌ *Insufficient balance*\n\nA run costs `%.2f`. Use /deposit to top up.", b.billing.Cost()))
		case errors.Is(err, service.ErrDailyLimitReached):
			b.send(chatID, "❌ *Daily limit reached*\n\nTry again tomorrow.")
		default:
			b.send(chatID, "❌ Could not start the run: "+err.Error())
		}
		return
	}

	template := ""
	if user, err := b.billing.GetUser(ctx, userID); err == nil {
		template = user.Template
	}

	b.send(chatID, fmt.Sprintf("🚀 *Provisioning started* for `%s`\n\n_This can take a minute, please wait..._", domain))

	go func() {
		defer cancel()
		result, err := b.provision.Provision(ctx, &service.ProvisionInput{
			TelegramID:  userID,
			Domain:      domain,
			RedirectURL: redirectURL,
			Template:    template,
		})
		if err != nil {
			b.billing.Refund(ctx, userID, charged)
			text := "❌ *Provisioning failed*\n\n" + service.UserMessage(err)
			if charged > 0 {
				text += fmt.Sprintf("\n\n💸 `%.2f` has been returned to your balance.", charged)
			}
			b.send(chatID, text)
			return
		}

		b.billing.RecordProvision(ctx, userID)

		var sb strings.Builder
		sb.WriteString("✅ *Provisioning complete*\n")
		sb.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
		sb.WriteString(fmt.Sprintf("🌐 *Domain:* `%s`\n", result.Domain))
		sb.WriteString(fmt.Sprintf("🖥 *Server IP:* `%s`\n", result.Account.ServerIP))
		sb.WriteString(fmt.Sprintf("👤 *cPanel user:* `%s`\n", result.Account.Username))
		sb.WriteString(fmt.Sprintf("🔑 *cPanel pass:* `%s`\n\n", result.Account.Password))
		sb.WriteString("🔗 *Your links:*\n")
		for _, u := range result.ScriptURLs() {
			sb.WriteString(fmt.Sprintf("`%s`\n", u))
		}
		sb.WriteString("\n📡 *Point your domain to these name servers:*\n")
		for _, ns := range result.NameServers {
			sb.WriteString(fmt.Sprintf("`%s`\n", ns))
		}
		if len(result.Advisories) > 0 {
			sb.WriteString("\n⚠️ _Some optional hardening steps failed; links still work._\n")
		}
		b.send(chatID, sb.String())
	}()
}

func (b *Bot) showBalance(ctx context.Context, chatID, userID int64) {
	user, err := b.billing.GetUser(ctx, userID)
	if err != nil {
		b.send(chatID, "❌ Could not load your account.")
		return
	}
	sub := "none"
	if user.SubscribedUntil != nil && user.SubscribedUntil.After(time.Now()) {
		sub = user.SubscribedUntil.Format("2006-01-02")
	}
	b.send(chatID, fmt.Sprintf(
		"👤 *Your account*\n━━━━━━━━━━━━━━━━━━━━\n💰 *Balance:* `%.2f`\n📅 *Subscription until:* `%s`\n📈 *Used today:* `%d`\n🧮 *Total runs:* `%d`",
		user.Balance, sub, user.DailyUsed, user.TotalProvisioned,
	))
}

func (b *Bot) showHistory(ctx context.Context, chatID, userID int64) {
	provisions, err := b.provisions.ListByUser(ctx, userID, 10)
	if err != nil {
		b.send(chatID, "❌ Could not load your history.")
		return
	}
	if len(provisions) == 0 {
		b.send(chatID, "📭 No provisioning runs yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 *Your last runs*\n━━━━━━━━━━━━━━━━━━━━\n")
	for _, p := range provisions {
		icon := "✅"
		if p.Status == "failed" {
			icon = "❌"
		} else if p.Status != "complete" {
			icon = "⏳"
		}
		sb.WriteString(fmt.Sprintf("%s `%s` — %s\n", icon, p.Domain, p.Status))
	}
	b.send(chatID, sb.String())
}

func (b *Bot) requestDeposit(ctx context.Context, chatID, userID int64, amount float64) {
	dep, err := b.billing.RequestDeposit(ctx, userID, amount)
	if err != nil {
		b.send(chatID, "❌ Could not file the deposit: "+err.Error())
		return
	}

	b.send(chatID, fmt.Sprintf("🧾 *Deposit filed*\n\nAmount: `%.2f`\nID: `%s`\n\n_An admin will review it shortly._", amount, dep.ID))

	// Admin gets inline approve/reject buttons.
	msg := tgbotapi.NewMessage(b.adminChatID, fmt.Sprintf(
		"💰 *Deposit request*\n\nUser: `%d`\nAmount: `%.2f`\nID: `%s`", userID, amount, dep.ID))
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "dep_approve:"+dep.ID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "dep_reject:"+dep.ID),
		),
	)
	b.api.Send(msg)
}

func (b *Bot) decideDeposit(ctx context.Context, chatID, adminID int64, depositID string, approve bool) {
	if approve {
		dep, err := b.billing.ApproveDeposit(ctx, depositID, adminID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				b.send(chatID, "⚠️ That deposit was already decided.")
				return
			}
			b.send(chatID, "❌ Approval failed: "+err.Error())
			return
		}
		b.send(chatID, fmt.Sprintf("✅ Deposit `%s` approved.", dep.ID))
		b.send(dep.TelegramID, fmt.Sprintf("✅ *Deposit approved*\n\n`%.2f` has been added to your balance.", dep.Amount))
		return
	}

	dep, err := b.billing.RejectDeposit(ctx, depositID, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			b.send(chatID, "⚠️ That deposit was already decided.")
			return
		}
		b.send(chatID, "❌ Rejection failed: "+err.Error())
		return
	}
	b.send(chatID, fmt.Sprintf("🚫 Deposit `%s` rejected.", dep.ID))
	b.send(dep.TelegramID, "🚫 *Deposit rejected*\n\nContact support if you believe this is a mistake.")
}

func (b *Bot) showPendingDeposits(ctx context.Context, chatID int64) {
	deposits, err := b.billing.PendingDeposits(ctx)
	if err != nil {
		b.send(chatID, "❌ Could not load pending deposits.")
		return
	}
	if len(deposits) == 0 {
		b.send(chatID, "📭 No pending deposits.")
		return
	}
	var sb strings.Builder
	sb.WriteString("🧾 *Pending deposits*\n━━━━━━━━━━━━━━━━━━━━\n")
	for _, d := range deposits {
		sb.WriteString(fmt.Sprintf("`%s` — user `%d`, amount `%.2f`\n", d.ID, d.TelegramID, d.Amount))
	}
	b.send(chatID, sb.String())
}

// grantSubscription handles /grant <telegram_id> <days>: admin-issued
// subscription time during which runs are not charged.
func (b *Bot) grantSubscription(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.send(chatID, "Usage: `/grant <telegram_id> <days>`")
		return
	}
	targetID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		b.send(chatID, "❌ Invalid telegram id.")
		return
	}
	days, err := strconv.Atoi(fields[1])
	if err != nil || days <= 0 {
		b.send(chatID, "❌ Days must be a positive number.")
		return
	}

	until, err := b.billing.GrantSubscription(ctx, targetID, days)
	if err != nil {
		b.send(chatID, "❌ Grant failed: "+err.Error())
		return
	}
	b.send(chatID, fmt.Sprintf("✅ User `%d` subscribed until `%s`.", targetID, until.Format("2006-01-02")))
	b.send(targetID, fmt.Sprintf("🎁 *Subscription granted*\n\nYour runs are free until `%s`.", until.Format("2006-01-02")))
}

func (b *Bot) showStats(ctx context.Context, chatID int64) {
	users, err := b.billing.ListUsers(ctx)
	if err != nil {
		b.send(chatID, "❌ Could not load stats.")
		return
	}
	total := 0
	for _, u := range users {
		total += u.TotalProvisioned
	}
	b.send(chatID, fmt.Sprintf("📊 *Stats*\n\n👥 Users: `%d`\n🌐 Total runs: `%d`", len(users), total))
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminChatID != 0 && userID == b.adminChatID
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[Bot] Failed to send message to %d: %v", chatID, err)
	}
}

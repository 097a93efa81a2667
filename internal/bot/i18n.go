package bot

import (
	"fmt"

	"github.com/xaenox/ishbor-bot/internal/models"
	"golang.org/x/text/language"
)

var texts = map[string]models.Text{
	"welcome": {
		Uz: "Assalomu alaykum! <b>Ishbor</b> botiga xush kelibsiz.\nTilni tanlang:",
		Ru: "Здравствуйте! Добро пожаловать в бот <b>Ishbor</b>.\nВыберите язык:",
	},
	"choose_language": {Uz: "Tilni tanlang:", Ru: "Выберите язык:"},
	"language_set":    {Uz: "O'zbek tili tanlandi.", Ru: "Выбран русский язык."},
	"ask_phone": {
		Uz: "Kirish uchun telefon raqamingizni yuboring yoki <code>+998XXXXXXXXX</code> ko'rinishida yozing.",
		Ru: "Для входа отправьте номер телефона или напишите его в формате <code>+998XXXXXXXXX</code>.",
	},
	"share_contact":   {Uz: "📱 Raqamni yuborish", Ru: "📱 Отправить номер"},
	"invalid_phone":   {Uz: "Raqam noto'g'ri. Namuna: <code>+998901234567</code>", Ru: "Неверный номер. Пример: <code>+998901234567</code>"},
	"foreign_contact": {Uz: "Iltimos, o'zingizning raqamingizni yuboring.", Ru: "Пожалуйста, отправьте свой собственный номер."},
	"ask_password":    {Uz: "Parolingizni kiriting:", Ru: "Введите пароль:"},
	"wrong_password":  {Uz: "Parol noto'g'ri. Qolgan urinishlar: %d", Ru: "Неверный пароль. Осталось попыток: %d"},
	"locked": {
		Uz: "Juda ko'p muvaffaqiyatsiz urinish. %d daqiqadan so'ng qayta urinib ko'ring.",
		Ru: "Слишком много неудачных попыток. Попробуйте снова через %d мин.",
	},
	"otp_sent":        {Uz: "%s raqamiga tasdiqlash kodi yuborildi. Kodni kiriting:", Ru: "Код подтверждения отправлен на %s. Введите код:"},
	"otp_wrong":       {Uz: "Kod noto'g'ri. Qolgan urinishlar: %d", Ru: "Неверный код. Осталось попыток: %d"},
	"otp_invalidated": {Uz: "Kod bekor qilindi. Yangi kod so'rang.", Ru: "Код аннулирован. Запросите новый."},
	"otp_expired":     {Uz: "Kodning amal qilish muddati tugadi. Yangi kod so'rang.", Ru: "Срок действия кода истёк. Запросите новый."},
	"otp_format":      {Uz: "Kod 6 ta raqamdan iborat.", Ru: "Код состоит из 6 цифр."},
	"otp_resend_wait": {Uz: "Yangi kodni %d soniyadan so'ng so'rash mumkin.", Ru: "Новый код можно запросить через %d сек."},
	"login_ok":        {Uz: "Tizimga muvaffaqiyatli kirdingiz!", Ru: "Вы успешно вошли!"},
	"logged_out":      {Uz: "Siz tizimdan chiqdingiz.", Ru: "Вы вышли из аккаунта."},
	"menu":            {Uz: "Asosiy menyu. Nima qilamiz?", Ru: "Главное меню. Что делаем?"},
	"help": {
		Uz: "<b>Buyruqlar</b>\n/search – ish yoki nomzod qidirish\n/resume – rezyume yaratish\n/lang – tilni o'zgartirish\n/cancel – joriy amalni bekor qilish\n/logout – chiqish\n/start – boshidan boshlash",
		Ru: "<b>Команды</b>\n/search – поиск вакансий или кандидатов\n/resume – создать резюме\n/lang – сменить язык\n/cancel – отменить текущее действие\n/logout – выйти\n/start – начать заново",
	},
	"unknown_command":     {Uz: "Noma'lum buyruq. /help ni bosing.", Ru: "Неизвестная команда. Нажмите /help."},
	"not_understood":      {Uz: "Tushunmadim. Tugmalardan foydalaning yoki /help ni bosing.", Ru: "Не понял. Воспользуйтесь кнопками или нажмите /help."},
	"cancelled":           {Uz: "Bekor qilindi.", Ru: "Отменено."},
	"need_login":          {Uz: "Avval tizimga kiring.", Ru: "Сначала войдите в аккаунт."},
	"resume_seekers_only": {Uz: "Rezyume faqat ish izlovchilar uchun.", Ru: "Резюме доступно только соискателям."},
	"apply_seekers_only":  {Uz: "Ariza faqat ish izlovchilar uchun.", Ru: "Отклик доступен только соискателям."},
	"generic_error":       {Uz: "Xatolik yuz berdi. Iltimos, qayta urinib ko'ring.", Ru: "Произошла ошибка. Пожалуйста, попробуйте ещё раз."},
	"outdated":            {Uz: "Bu tugma eskirgan.", Ru: "Эта кнопка устарела."},
	"not_found":           {Uz: "E'lon topilmadi yoki yopilgan.", Ru: "Объявление не найдено или закрыто."},

	"ask_title":         {Uz: "Qaysi lavozimda ishlamoqchisiz? (masalan: Haydovchi)", Ru: "На какой должности хотите работать? (например: Водитель)"},
	"ask_category":      {Uz: "Sohani tanlang:", Ru: "Выберите сферу:"},
	"ask_region":        {Uz: "Hududni tanlang:", Ru: "Выберите регион:"},
	"ask_district":      {Uz: "Tumanni tanlang:", Ru: "Выберите район:"},
	"ask_salary_resume": {Uz: "Kutilayotgan oylik maoshni so'mda yozing (masalan: 5000000):", Ru: "Напишите ожидаемую зарплату в сумах (например: 5000000):"},
	"ask_salary_search": {Uz: "Minimal oylik maosh qancha bo'lsin? (so'mda)", Ru: "Какая минимальная зарплата? (в сумах)"},
	"ask_experience":    {Uz: "Ish tajribasi:", Ru: "Опыт работы:"},
	"ask_employment":    {Uz: "Bandlik turi:", Ru: "Тип занятости:"},
	"ask_skills":        {Uz: "Ko'nikmalaringizni vergul bilan yozing (masalan: Excel, 1C, rus tili):", Ru: "Перечислите навыки через запятую (например: Excel, 1C, английский):"},
	"confirm_resume":    {Uz: "Rezyumeni tekshiring:\n\n%s", Ru: "Проверьте резюме:\n\n%s"},
	"invalid_title":     {Uz: "Lavozim nomi 3 dan 100 gacha belgidan iborat bo'lsin.", Ru: "Название должности должно содержать от 3 до 100 символов."},
	"invalid_salary":    {Uz: "Maoshni raqam bilan yozing, masalan 3000000.", Ru: "Напишите зарплату числом, например 3000000."},
	"invalid_skills":    {Uz: "Ko'pi bilan 10 ta ko'nikma, har biri 40 belgigacha.", Ru: "Не более 10 навыков, каждый до 40 символов."},
	"invalid_choice":    {Uz: "Iltimos, tugmalardan birini tanlang.", Ru: "Пожалуйста, выберите один из вариантов."},
	"resume_published":  {Uz: "Rezyume saqlandi va kanalda e'lon qilinadi.", Ru: "Резюме сохранено и будет опубликовано в канале."},
	"resume_saved":      {Uz: "Rezyume saqlandi.", Ru: "Резюме сохранено."},

	"no_results":     {Uz: "Afsuski, mos natija topilmadi. Shartlarni o'zgartirib ko'ring.", Ru: "К сожалению, ничего не найдено. Попробуйте изменить условия."},
	"results_header": {Uz: "<b>Topildi: %d ta</b> · sahifa %d/%d", Ru: "<b>Найдено: %d</b> · страница %d/%d"},
	"applied":        {Uz: "Arizangiz yuborildi!", Ru: "Ваш отклик отправлен!"},
	"no_location":    {Uz: "Manzil ko'rsatilmagan", Ru: "Адрес не указан"},
	"match":          {Uz: "Moslik", Ru: "Совпадение"},

	"btn_search_jobs":       {Uz: "🔎 Ish qidirish", Ru: "🔎 Искать работу"},
	"btn_search_candidates": {Uz: "🔎 Nomzod qidirish", Ru: "🔎 Искать кандидатов"},
	"btn_resume":            {Uz: "📝 Rezyume", Ru: "📝 Резюме"},
	"btn_help":              {Uz: "ℹ️ Yordam", Ru: "ℹ️ Помощь"},
	"btn_language":          {Uz: "🌐 Til", Ru: "🌐 Язык"},
	"btn_back":              {Uz: "⬅️ Orqaga", Ru: "⬅️ Назад"},
	"btn_cancel":            {Uz: "✖️ Bekor qilish", Ru: "✖️ Отмена"},
	"btn_skip":              {Uz: "O'tkazib yuborish", Ru: "Пропустить"},
	"btn_any":               {Uz: "Farqi yo'q", Ru: "Не важно"},
	"btn_negotiable":        {Uz: "Kelishiladi", Ru: "Договорная"},
	"btn_publish":           {Uz: "✅ E'lon qilish", Ru: "✅ Опубликовать"},
	"btn_private":           {Uz: "🔒 Faqat saqlash", Ru: "🔒 Только сохранить"},
	"btn_restart":           {Uz: "✏️ Qaytadan", Ru: "✏️ Заново"},
	"btn_more":              {Uz: "Keyingi ➡️", Ru: "Далее ➡️"},
	"btn_prev":              {Uz: "⬅️ Oldingi", Ru: "⬅️ Назад"},
	"btn_apply":             {Uz: "✅ Ariza yuborish", Ru: "✅ Откликнуться"},
	"btn_location":          {Uz: "📍 Xaritada", Ru: "📍 На карте"},
	"btn_list":              {Uz: "📋 Ro'yxatga qaytish", Ru: "📋 К списку"},
	"btn_site":              {Uz: "🌐 Saytda ochish", Ru: "🌐 Открыть на сайте"},
	"btn_resend":            {Uz: "🔄 Yangi kod", Ru: "🔄 Новый код"},
	"btn_forgot":            {Uz: "Parolni unutdim", Ru: "Забыл пароль"},

	"label_salary":       {Uz: "Maosh", Ru: "Зарплата"},
	"label_region":       {Uz: "Hudud", Ru: "Регион"},
	"label_category":     {Uz: "Soha", Ru: "Сфера"},
	"label_experience":   {Uz: "Tajriba", Ru: "Опыт"},
	"label_employment":   {Uz: "Bandlik", Ru: "Занятость"},
	"label_skills":       {Uz: "Ko'nikmalar", Ru: "Навыки"},
	"label_requirements": {Uz: "Talablar", Ru: "Требования"},
	"label_benefits":     {Uz: "Qulayliklar", Ru: "Условия"},
	"label_contact":      {Uz: "Aloqa", Ru: "Контакты"},
	"label_title":        {Uz: "Lavozim", Ru: "Должность"},
	"label_remote":       {Uz: "Masofaviy ish mumkin", Ru: "Возможна удалённая работа"},
	"label_not_set":      {Uz: "ko'rsatilmagan", Ru: "не указано"},
}

// tr looks up a message. Missing keys come back verbatim so a typo is
// visible instead of silent.
func tr(lang models.Language, key string, args ...any) string {
	t, ok := texts[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return t.In(lang)
	}
	return fmt.Sprintf(t.In(lang), args...)
}

var languageMatcher = language.NewMatcher([]language.Tag{language.Uzbek, language.Russian})

// detectLanguage picks the interface language from a Telegram client
// language code. Russian speaking locales get Russian, everything else
// Uzbek.
func detectLanguage(code string) models.Language {
	if code == "" {
		return models.LangUz
	}
	tag, err := language.Parse(code)
	if err != nil {
		return models.LangUz
	}
	matched, _, confidence := languageMatcher.Match(tag)
	if confidence == language.No {
		return models.LangUz
	}
	if base, _ := matched.Base(); base.String() == "ru" {
		return models.LangRu
	}
	return models.LangUz
}

package boot

import (
	"context"
	"log"
	"spruce/src/db"
	"spruce/src/lib"
	"spruce/src/models"
	"spruce/src/workflow"
	"time"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Booking{},
		&models.StatusUpdate{},
		&models.Transaction{},
		&models.JobTask{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

// RecoverQueuedJobs re-arms pending watchdog tasks after a restart.
// In-memory timers die with the process; the JobTask table is the source
// of truth. Overdue tasks fire immediately through the engine, which
// re-checks current status anyway.
func RecoverQueuedJobs(engine *workflow.Engine) error {
	gdb := db.GetDb()
	ss := gdb.Session(&gorm.Session{PrepareStmt: true})
	var jobTasks []models.JobTask
	horizon := time.Now().Add((24 * 30) * time.Hour)
	err := ss.
		Model(&models.JobTask{}).
		Where(&models.JobTask{Status: "pending", JobType: "watchdog"}).
		Where("runs_at < ?", horizon).
		Order("runs_at asc").
		Limit(500).
		Find(&jobTasks).
		Error
	if err != nil {
		log.Printf("Error retrieving jobs: %s\n", err.Error())
		return err
	}
	log.Printf("Found %d pending jobs", len(jobTasks))
	ctx := context.Background()
	for i := range jobTasks {
		jt := &jobTasks[i]
		if err := engine.Resume(ctx, jt); err != nil {
			log.Printf("Failed to resume job [%s]. Skipping: %s\n", jt.ID.String(), err.Error())
			continue
		}
		log.Printf("Recovered job: name=%s id=%s runs_at=%s\n", jt.Name, jt.ID.String(), jt.RunsAt)
	}

	return nil
}

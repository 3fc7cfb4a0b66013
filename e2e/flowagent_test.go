// Copyright Contributors to the KubeTask project

package e2e

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	ktesting "k8s.io/client-go/testing"

	"github.com/google/uuid"

	"github.com/kubetask/flowagent/internal/agent"
	"github.com/kubetask/flowagent/internal/client"
	"github.com/kubetask/flowagent/internal/client/fakeserver"
	"github.com/kubetask/flowagent/internal/infra"
	"github.com/kubetask/flowagent/internal/model"
)

var _ = Describe("Work-queue agent loop", Label(LabelAgentLoop), func() {
	var (
		srv *fakeserver.Server
		a   *agent.Agent
	)

	BeforeEach(func() {
		srv = fakeserver.New()
		DeferCleanup(srv.Close)
	})

	startAgent := func(queues ...string) {
		cl := client.NewHTTPClient(srv.URL())
		var err error
		a, err = agent.New(cl, agent.Options{WorkQueues: queues, PrefetchSeconds: 30})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Start(context.Background())).To(Succeed())
		DeferCleanup(func() error { return a.Shutdown() })
	}

	It("skips a paused queue entirely", func() {
		queue := model.WorkQueue{ID: uuid.New(), Name: uniqueName("paused-queue"), IsPaused: true}
		srv.SeedWorkQueue(queue)
		startAgent(queue.Name)

		runs, err := a.Tick(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(BeEmpty())
	})

	It("does not resubmit a run still in flight", func() {
		queue := model.WorkQueue{ID: uuid.New(), Name: uniqueName("dedup-queue")}
		srv.SeedWorkQueue(queue)

		run := model.FlowRun{ID: uuid.New(), DeploymentID: uuid.New(), ScheduledStart: time.Now()}
		srv.SeedRuns(queue.ID, []model.FlowRun{run})

		release := make(chan struct{})
		srv.ProposeStateFunc = func(flowRunID uuid.UUID, proposed model.State) (model.State, int) {
			<-release
			return model.State{Type: model.StateFailed}, http.StatusConflict
		}
		startAgent(queue.Name)

		first, err := a.Tick(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(HaveLen(1))

		second, err := a.Tick(context.Background())
		close(release)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeEmpty())
	})
})

var _ = Describe("Submission coordinator", Label(LabelCoordinator), func() {
	var srv *fakeserver.Server

	BeforeEach(func() {
		srv = fakeserver.New()
		DeferCleanup(srv.Close)
	})

	It("reports the fixed failure message when infrastructure resolution fails", func() {
		queue := model.WorkQueue{ID: uuid.New(), Name: uniqueName("resolve-fail-queue")}
		srv.SeedWorkQueue(queue)

		run := model.FlowRun{ID: uuid.New(), DeploymentID: uuid.New(), ScheduledStart: time.Now()}
		srv.SeedRuns(queue.ID, []model.FlowRun{run})
		// Deliberately no deployment seeded for run.DeploymentID: the
		// resolver's ReadDeployment call fails, and the coordinator must
		// still report a well-formed Failed state.

		cl := client.NewHTTPClient(srv.URL())
		a, err := agent.New(cl, agent.Options{WorkQueues: []string{queue.Name}, PrefetchSeconds: 30})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Start(context.Background())).To(Succeed())
		DeferCleanup(func() error { return a.Shutdown() })

		_, err = a.Tick(context.Background())
		Expect(err).NotTo(HaveOccurred())

		// The claim records Pending first; wait for the Failed report that
		// follows it.
		Eventually(func() model.StateType {
			state, _ := srv.StateFor(run.ID)
			return state.Type
		}).Should(Equal(model.StateFailed))

		state, _ := srv.StateFor(run.ID)
		Expect(state.Type).To(Equal(model.StateFailed))
		Expect(state.Message).To(Equal("Submission failed."))
	})
})

var _ = Describe("Kubernetes job submission pipeline", Label(LabelRunner), func() {
	It("builds a manifest, creates the Job, and watches it to completion", func() {
		clientset := fake.NewSimpleClientset()

		podWatcher := watch.NewFake()
		clientset.PrependWatchReactor("pods", ktesting.DefaultWatchReactor(podWatcher, nil))
		jobWatcher := watch.NewFake()
		clientset.PrependWatchReactor("jobs", ktesting.DefaultWatchReactor(jobWatcher, nil))

		go func() {
			pod := &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: uniqueName("flow-run-pod"), Namespace: "default"},
				Status:     corev1.PodStatus{Phase: corev1.PodRunning},
			}
			clientset.Tracker().Add(pod)
			podWatcher.Modify(pod)

			job := &batchv1.Job{
				ObjectMeta: metav1.ObjectMeta{Name: uniqueName("flow-run-job"), Namespace: "default"},
				Status:     batchv1.JobStatus{CompletionTime: &metav1.Time{Time: time.Now()}},
			}
			jobWatcher.Modify(job)
		}()

		k := &infra.KubernetesJob{
			Command:                []string{"echo", "hello"},
			Image:                  "busybox",
			Namespace:              "default",
			Name:                   uniqueName("flow-run"),
			PodWatchTimeoutSeconds: 30,
			JobWatchTimeoutSeconds: 30,
			Clientset:              clientset,
		}

		sig := infra.NewSignal()
		resultCh := make(chan infra.Result, 1)
		errCh := make(chan error, 1)
		go func() {
			result, err := k.Run(context.Background(), sig)
			if err != nil {
				errCh <- err
				return
			}
			resultCh <- result
		}()

		identifier, err := sig.Await(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(identifier).NotTo(BeEmpty())

		Eventually(resultCh, 5*time.Second).Should(Receive(HaveField("Status", "Completed")))
		Consistently(errCh).ShouldNot(Receive())
	})
})
